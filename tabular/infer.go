package tabular

import (
	"fmt"
	"strconv"
	"strings"
)

// InferSampleSize is the number of leading rows used for type inference.
const InferSampleSize = 100

// InferColumnTypes scans sample rows of raw text values and picks the
// narrowest type each column fits: Int64, then Float64, else String.
// Empty cells are treated as null and do not constrain the type. A column
// with no non-empty sample values is String.
func InferColumnTypes(rows [][]string, columnCount int) []DataType {
	types := make([]DataType, columnCount)
	for col := 0; col < columnCount; col++ {
		isInt, isReal, hasData := true, true, false
		for _, row := range rows {
			if col >= len(row) || row[col] == "" {
				continue
			}
			hasData = true
			val := strings.TrimSpace(row[col])
			if _, err := strconv.ParseInt(val, 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				isReal = false
				break
			}
		}
		switch {
		case !hasData:
			types[col] = String
		case isInt:
			types[col] = Int64
		case isReal:
			types[col] = Float64
		default:
			types[col] = String
		}
	}
	return types
}

// ParseValue converts raw text to the Go value for t. Empty text is null.
func ParseValue(raw string, t DataType) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch t {
	case Int64:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an Int64", raw)
		}
		return v, nil
	case Float64:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a Float64", raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// Widen returns the type able to hold values of both a and b.
func Widen(a, b DataType) DataType {
	switch {
	case a == b:
		return a
	case a.Numeric() && b.Numeric():
		return Float64
	default:
		return String
	}
}

// Coerce converts v, already typed as some DataType, to t.
func Coerce(v any, t DataType) any {
	if v == nil {
		return nil
	}
	switch t {
	case Float64:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	case String:
		switch x := v.(type) {
		case int64:
			return strconv.FormatInt(x, 10)
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return v
}

// AsFloat reads a numeric value; strings are parsed. ok is false for nulls.
func AsFloat(v any) (f float64, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return float64(x), true, nil
	case float64:
		return x, true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false, fmt.Errorf("value %q is not numeric", x)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected value type %T", v)
	}
}

// FormatValue renders a value as text; nulls become the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
