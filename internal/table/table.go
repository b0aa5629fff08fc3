package table

import (
	"fmt"
	"slices"
	"strings"
)

// Table is an ordered set of equal-length named columns.
//
// Table is not safe for concurrent mutation.
type Table struct {
	cols  []*Column
	pos   map[string]int
	index string
}

// New creates a table from columns. Names must be unique and all columns must
// have the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{pos: make(map[string]int, len(cols))}
	for _, c := range cols {
		if _, ok := t.pos[c.name]; ok {
			return nil, fmt.Errorf("duplicate column %q", c.name)
		}
		if len(t.cols) > 0 && c.Len() != t.cols[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), t.cols[0].Len())
		}
		t.pos[c.name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	i, ok := t.pos[name]
	if !ok {
		return nil
	}
	return t.cols[i]
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.pos[name]
	return ok
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.cols)
}

// Shape returns the number of rows and columns.
func (t *Table) Shape() (rows, cols int) {
	return t.NumRows(), t.NumCols()
}

// SetColumn appends c, or replaces the column with the same name.
func (t *Table) SetColumn(c *Column) error {
	i, replacing := t.pos[c.name]
	if n := len(t.cols); n > 0 && !(replacing && n == 1) && c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), t.NumRows())
	}
	if replacing {
		t.cols[i] = c
		return nil
	}
	t.pos[c.name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// Select returns a table holding the named columns in the given order. The
// columns are shared with t.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c := t.Column(name)
		if c == nil {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.index = t.index
	return out, nil
}

// IndexName returns the name of the row index; empty when unnamed.
func (t *Table) IndexName() string {
	return t.index
}

// SetIndexName names the row index.
func (t *Table) SetIndexName(name string) {
	t.index = name
}

// DType returns the type of the named column, or "" when absent.
func (t *Table) DType(name string) DType {
	c := t.Column(name)
	if c == nil {
		return ""
	}
	return c.Type()
}

// DTypes returns the type of every column.
func (t *Table) DTypes() map[string]DType {
	out := make(map[string]DType, len(t.cols))
	for _, c := range t.cols {
		out[c.name] = c.Type()
	}
	return out
}

// Cast converts the named column to d in place.
func (t *Table) Cast(name string, d DType) error {
	i, ok := t.pos[name]
	if !ok {
		return fmt.Errorf("column %q not found", name)
	}
	c, err := t.cols[i].Cast(d)
	if err != nil {
		return err
	}
	t.cols[i] = c
	return nil
}

// MemoryUsage returns the approximate bytes held by each column.
func (t *Table) MemoryUsage() map[string]int64 {
	out := make(map[string]int64, len(t.cols))
	for _, c := range t.cols {
		out[c.name] = c.Memory()
	}
	return out
}

// Memory returns the approximate bytes held by the table.
func (t *Table) Memory() int64 {
	var n int64
	for _, c := range t.cols {
		n += c.Memory()
	}
	return n
}

// Copy returns a deep copy of t.
func (t *Table) Copy() *Table {
	out := &Table{pos: make(map[string]int, len(t.cols)), index: t.index}
	for i, c := range t.cols {
		out.cols = append(out.cols, c.Copy())
		out.pos[c.name] = i
	}
	return out
}

// Equal reports whether both tables have the same index name and the same
// columns in the same order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.index != o.index || len(t.cols) != len(o.cols) {
		return false
	}
	for i := range t.cols {
		if !t.cols[i].Equal(o.cols[i]) {
			return false
		}
	}
	return true
}

// Value returns the natural value at row of column col.
func (t *Table) Value(col string, row int) (any, error) {
	c := t.Column(col)
	if c == nil {
		return nil, fmt.Errorf("column %q not found", col)
	}
	if row < 0 || row >= c.Len() {
		return nil, fmt.Errorf("row %d out of range [0, %d)", row, c.Len())
	}
	return c.Value(row), nil
}

// Row returns row i keyed by column name.
func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		out[c.name] = c.Value(i)
	}
	return out
}

// Take returns a table holding the given rows in order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{pos: make(map[string]int, len(t.cols)), index: t.index}
	for i, c := range t.cols {
		out.cols = append(out.cols, c.take(rows))
		out.pos[c.name] = i
	}
	return out
}

// Rename returns a table with columns renamed through names. Columns absent
// from names keep their name.
func (t *Table) Rename(names map[string]string) (*Table, error) {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if n, ok := names[c.name]; ok {
			cols[i] = c.withName(n)
		} else {
			cols[i] = c
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.index = t.index
	return out, nil
}

// String returns a short description with the shape and column types.
func (t *Table) String() string {
	parts := make([]string, len(t.cols))
	for i, c := range t.cols {
		parts[i] = c.name + ":" + string(c.Type())
	}
	return fmt.Sprintf("Table(%d×%d)[%s]", t.NumRows(), t.NumCols(), strings.Join(parts, " "))
}

func (c *Column) take(rows []int) *Column {
	out := &Column{name: c.name, dtype: c.dtype, categorical: c.categorical}
	if c.categorical {
		out.data = c.data
		out.codes = make([]int32, len(rows))
		for i, r := range rows {
			out.codes[i] = c.codes[r]
		}
		return out
	}
	switch v := c.data.(type) {
	case []int64:
		out.data = pick(v, rows)
	case []float64:
		out.data = pick(v, rows)
	case []string:
		out.data = pick(v, rows)
	case []bool:
		out.data = pick(v, rows)
	}
	return out
}

func pick[T Value](values []T, rows []int) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

// sortedNames returns the names of m in sorted order.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
