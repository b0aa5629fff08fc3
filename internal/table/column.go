// Handles typed column storage and categorical encoding.

package table

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is the set of Go types a column can hold.
type Value interface {
	int64 | float64 | string | bool
}

// Column is a named, typed sequence of values.
//
// Columns are immutable once built: casts and copies return new columns.
// Slices returned by accessors must not be modified.
type Column struct {
	name string
	// dtype is the natural type of data. For a categorical column it is the
	// type of the levels.
	dtype DType
	// data is a []int64, []float64, []string or []bool. For a categorical
	// column it holds the sorted levels.
	data        any
	codes       []int32
	categorical bool
}

// NewColumn creates a column of natural type from values. The column takes
// ownership of the slice.
func NewColumn[T Value](name string, values []T) *Column {
	c := &Column{name: name, data: values}
	switch any(values).(type) {
	case []int64:
		c.dtype = Int64
	case []float64:
		c.dtype = Float64
	case []string:
		c.dtype = String
	case []bool:
		c.dtype = Bool
	}
	return c
}

// NewCategorical creates a categorical column from natural values.
func NewCategorical[T Value](name string, values []T) *Column {
	return NewColumn(name, values).encode()
}

// Values returns the natural values of c as []T. Categorical columns are
// decoded. It returns false when T does not match the natural type of c.
func Values[T Value](c *Column) ([]T, bool) {
	src := c
	if c.categorical {
		src = c.decode()
	}
	v, ok := src.data.([]T)
	return v, ok
}

// fromAny builds a column of type d from loosely typed values, coercing each
// one. If d is empty the type is inferred.
func fromAny(name string, values []any, d DType) (*Column, error) {
	if d == Category {
		return categoricalFromAny(name, values, "")
	}
	if d == "" {
		d = inferDType(values)
	}
	data := makeSlice(d, len(values))
	var err error
	for i, v := range values {
		if data, err = appendCoerced(data, d, v); err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
	}
	return &Column{name: name, dtype: d, data: data}, nil
}

// categoricalFromAny builds a categorical column with levels of type d.
// Nil values get code -1.
func categoricalFromAny(name string, values []any, d DType) (*Column, error) {
	present := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, v)
		}
	}
	natural, err := fromAny(name, present, d)
	if err != nil {
		return nil, err
	}
	enc := natural.encode()
	codes := make([]int32, len(values))
	j := 0
	for i, v := range values {
		if v == nil {
			codes[i] = -1
			continue
		}
		codes[i] = enc.codes[j]
		j++
	}
	enc.codes = codes
	return enc, nil
}

// Name returns the column name.
func (c *Column) Name() string {
	return c.name
}

// Type returns Category for categorical columns and the natural type
// otherwise.
func (c *Column) Type() DType {
	if c.categorical {
		return Category
	}
	return c.dtype
}

// NaturalType returns the natural type of the values, looking through the
// categorical encoding.
func (c *Column) NaturalType() DType {
	return c.dtype
}

// IsCategorical reports whether the column is dictionary encoded.
func (c *Column) IsCategorical() bool {
	return c.categorical
}

// Len returns the number of values.
func (c *Column) Len() int {
	if c.categorical {
		return len(c.codes)
	}
	return sliceLen(c.data)
}

// Codes returns the categorical codes, or nil for a natural column.
func (c *Column) Codes() []int32 {
	return c.codes
}

// Levels returns the sorted categorical levels as a typed slice, or nil for
// a natural column.
func (c *Column) Levels() any {
	if !c.categorical {
		return nil
	}
	return c.data
}

// Value returns the natural value at row i. Missing categorical values are
// returned as NaN for float levels and nil otherwise.
func (c *Column) Value(i int) any {
	if !c.categorical {
		return sliceAt(c.data, i)
	}
	code := c.codes[i]
	if code < 0 {
		if c.dtype == Float64 {
			return math.NaN()
		}
		return nil
	}
	return sliceAt(c.data, int(code))
}

// Cast returns c converted to d.
func (c *Column) Cast(d DType) (*Column, error) {
	if d == Category {
		if c.categorical {
			return c, nil
		}
		return c.encode(), nil
	}
	if !d.IsNatural() {
		return nil, fmt.Errorf("unknown dtype %q", d)
	}
	src := c
	if c.categorical {
		src = c.decode()
	}
	if src.dtype == d {
		return src, nil
	}
	n := src.Len()
	data := makeSlice(d, n)
	var err error
	for i := range n {
		if data, err = appendCoerced(data, d, src.Value(i)); err != nil {
			return nil, fmt.Errorf("failed to cast column %q row %d to %s: %w", c.name, i, d, err)
		}
	}
	return &Column{name: c.name, dtype: d, data: data}, nil
}

// Copy returns a deep copy of c.
func (c *Column) Copy() *Column {
	return &Column{
		name:        c.name,
		dtype:       c.dtype,
		data:        cloneSlice(c.data),
		codes:       slices.Clone(c.codes),
		categorical: c.categorical,
	}
}

// Equal reports whether both columns have the same name, type and values.
// NaN compares equal to NaN.
func (c *Column) Equal(o *Column) bool {
	if c.name != o.name || c.dtype != o.dtype || c.categorical != o.categorical || c.Len() != o.Len() {
		return false
	}
	if c.categorical && !slices.Equal(c.codes, o.codes) {
		return false
	}
	return equalSlice(c.data, o.data)
}

// Memory returns the approximate number of bytes held by the column.
func (c *Column) Memory() int64 {
	n := int64(len(c.codes)) * 4
	switch v := c.data.(type) {
	case []int64:
		n += int64(len(v)) * 8
	case []float64:
		n += int64(len(v)) * 8
	case []bool:
		n += int64(len(v))
	case []string:
		for _, s := range v {
			n += 16 + int64(len(s))
		}
	}
	return n
}

func (c *Column) withName(name string) *Column {
	cc := *c
	cc.name = name
	return &cc
}

func (c *Column) encode() *Column {
	out := &Column{name: c.name, dtype: c.dtype, categorical: true}
	switch v := c.data.(type) {
	case []int64:
		out.codes, out.data = encodeOrdered(v, nil)
	case []float64:
		out.codes, out.data = encodeOrdered(v, math.IsNaN)
	case []string:
		out.codes, out.data = encodeOrdered(v, nil)
	case []bool:
		out.codes, out.data = encodeBool(v)
	}
	return out
}

func (c *Column) decode() *Column {
	out := &Column{name: c.name, dtype: c.dtype}
	switch lv := c.data.(type) {
	case []int64:
		out.data = decodeLevels(lv, c.codes, 0)
	case []float64:
		out.data = decodeLevels(lv, c.codes, math.NaN())
	case []string:
		out.data = decodeLevels(lv, c.codes, "")
	case []bool:
		out.data = decodeLevels(lv, c.codes, false)
	}
	return out
}

// encodeOrdered returns the codes of values into their sorted unique levels.
// Values for which missing returns true get code -1.
func encodeOrdered[T cmp.Ordered](values []T, missing func(T) bool) ([]int32, []T) {
	seen := make(map[T]struct{})
	for _, v := range values {
		if missing != nil && missing(v) {
			continue
		}
		seen[v] = struct{}{}
	}
	levels := make([]T, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	slices.Sort(levels)
	pos := make(map[T]int32, len(levels))
	for i, v := range levels {
		pos[v] = int32(i)
	}
	codes := make([]int32, len(values))
	for i, v := range values {
		if missing != nil && missing(v) {
			codes[i] = -1
			continue
		}
		codes[i] = pos[v]
	}
	return codes, levels
}

func encodeBool(values []bool) ([]int32, []bool) {
	var hasFalse, hasTrue bool
	for _, v := range values {
		if v {
			hasTrue = true
		} else {
			hasFalse = true
		}
	}
	var levels []bool
	if hasFalse {
		levels = append(levels, false)
	}
	if hasTrue {
		levels = append(levels, true)
	}
	if levels == nil {
		levels = []bool{}
	}
	codes := make([]int32, len(values))
	for i, v := range values {
		if v && hasFalse {
			codes[i] = 1
		}
	}
	return codes, levels
}

func decodeLevels[T Value](levels []T, codes []int32, missing T) []T {
	out := make([]T, len(codes))
	for i, code := range codes {
		if code < 0 {
			out[i] = missing
			continue
		}
		out[i] = levels[code]
	}
	return out
}

// keyAt returns a string uniquely identifying the value at row i within the
// column.
func (c *Column) keyAt(i int) string {
	if c.categorical {
		return strconv.Itoa(int(c.codes[i]))
	}
	switch v := c.data.(type) {
	case []int64:
		return strconv.FormatInt(v[i], 10)
	case []float64:
		f := v[i]
		switch {
		case math.IsNaN(f):
			return "NaN"
		case f == 0:
			// -0 and 0 are one key.
			f = 0
		}
		return strconv.FormatUint(math.Float64bits(f), 16)
	case []string:
		return strconv.Itoa(len(v[i])) + ":" + v[i]
	case []bool:
		return strconv.FormatBool(v[i])
	}
	return ""
}

// compareAt orders rows i and j of the column by natural value.
func (c *Column) compareAt(i, j int) int {
	if c.categorical {
		// Levels are sorted so codes order like their values; missing first.
		return cmp.Compare(c.codes[i], c.codes[j])
	}
	switch v := c.data.(type) {
	case []int64:
		return cmp.Compare(v[i], v[j])
	case []float64:
		return cmp.Compare(v[i], v[j])
	case []string:
		return strings.Compare(v[i], v[j])
	case []bool:
		switch {
		case v[i] == v[j]:
			return 0
		case v[j]:
			return -1
		default:
			return 1
		}
	}
	return 0
}

func sliceLen(s any) int {
	switch v := s.(type) {
	case []int64:
		return len(v)
	case []float64:
		return len(v)
	case []string:
		return len(v)
	case []bool:
		return len(v)
	}
	return 0
}

func sliceAt(s any, i int) any {
	switch v := s.(type) {
	case []int64:
		return v[i]
	case []float64:
		return v[i]
	case []string:
		return v[i]
	case []bool:
		return v[i]
	}
	return nil
}

func cloneSlice(s any) any {
	switch v := s.(type) {
	case []int64:
		return slices.Clone(v)
	case []float64:
		return slices.Clone(v)
	case []string:
		return slices.Clone(v)
	case []bool:
		return slices.Clone(v)
	}
	return s
}

func equalSlice(a, b any) bool {
	switch x := a.(type) {
	case []int64:
		y, ok := b.([]int64)
		return ok && slices.Equal(x, y)
	case []string:
		y, ok := b.([]string)
		return ok && slices.Equal(x, y)
	case []bool:
		y, ok := b.([]bool)
		return ok && slices.Equal(x, y)
	case []float64:
		y, ok := b.([]float64)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] && !(math.IsNaN(x[i]) && math.IsNaN(y[i])) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}
