// Handles column data types and value coercion between them.

package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DType is the data type of a column.
type DType string

const (
	// Int64 stores 64-bit signed integers.
	Int64 DType = "int64"
	// Float64 stores 64-bit floats. NaN marks a missing value.
	Float64 DType = "float64"
	// String stores UTF-8 text.
	String DType = "string"
	// Bool stores booleans.
	Bool DType = "bool"
	// Category stores a dictionary encoding of one of the natural types.
	Category DType = "category"
)

var errNaN = errors.New("cannot convert NaN")

// ParseDType parses a type name. It accepts the canonical names plus a few
// common aliases ("int", "float", "str", "object", "boolean").
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int64", "int", "integer":
		return Int64, nil
	case "float64", "float", "double", "number":
		return Float64, nil
	case "string", "str", "text", "object":
		return String, nil
	case "bool", "boolean":
		return Bool, nil
	case "category", "categorical":
		return Category, nil
	default:
		return "", fmt.Errorf("unknown dtype %q", s)
	}
}

// IsNatural reports whether d is one of the natural (non-categorical) types.
func (d DType) IsNatural() bool {
	switch d {
	case Int64, Float64, String, Bool:
		return true
	default:
		return false
	}
}

// makeSlice allocates an empty typed slice of capacity n for d.
func makeSlice(d DType, n int) any {
	switch d {
	case Int64:
		return make([]int64, 0, n)
	case Float64:
		return make([]float64, 0, n)
	case Bool:
		return make([]bool, 0, n)
	default:
		return make([]string, 0, n)
	}
}

// appendCoerced converts v to d and appends it to s, which must have been
// created by makeSlice(d). A nil v appends the missing value of d.
func appendCoerced(s any, d DType, v any) (any, error) {
	switch d {
	case Int64:
		i, err := toInt64(v)
		if err != nil {
			return s, err
		}
		return append(s.([]int64), i), nil
	case Float64:
		f, err := toFloat64(v)
		if err != nil {
			return s, err
		}
		return append(s.([]float64), f), nil
	case Bool:
		b, err := toBool(v)
		if err != nil {
			return s, err
		}
		return append(s.([]bool), b), nil
	case String:
		return append(s.([]string), toString(v)), nil
	default:
		return s, fmt.Errorf("cannot coerce to %s", d)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, errNaN
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
		return 0, fmt.Errorf("cannot convert %q to int64", x)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float64", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		if math.IsNaN(x) {
			return false, errNaN
		}
		return x != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to bool", x)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", v)
	}
}

// toString formats whole floats without a decimal part, like SQLite TEXT
// affinity.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && !math.IsNaN(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(v)
	}
}

// inferDType returns the narrowest natural type able to hold every value.
// Nil values are ignored; a column of only nils is Float64.
func inferDType(values []any) DType {
	var hasInt, hasFloat, hasBool, hasString bool
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int, int32, int64:
			hasInt = true
		case float32, float64:
			hasFloat = true
		case bool:
			hasBool = true
		default:
			hasString = true
		}
	}
	switch {
	case hasString:
		return String
	case hasBool && (hasInt || hasFloat):
		return String
	case hasBool:
		return Bool
	case hasFloat:
		return Float64
	case hasInt:
		for _, v := range values {
			if v == nil {
				// Integers cannot represent a missing value.
				return Float64
			}
		}
		return Int64
	default:
		return Float64
	}
}
