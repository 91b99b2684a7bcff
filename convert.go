package envrig

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	durationType   = reflect.TypeOf(time.Duration(0))
	timeType       = reflect.TypeOf(time.Time{})
	optionalPkg    = reflect.TypeOf(Optional[int]{}).PkgPath()
	optionalPrefix = "Optional["
)

// isOptionalType reports whether t is an instantiation of Optional[T].
func isOptionalType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct &&
		t.PkgPath() == optionalPkg &&
		strings.HasPrefix(t.Name(), optionalPrefix) &&
		t.NumField() == 2
}

// isNestedStruct reports whether t is bound field by field.
// time.Time and Optional[T] are bound as single values.
func isNestedStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType && !isOptionalType(t)
}

// convertValue converts a raw source value (usually a string) to targetType.
// nil converts to the zero value.
func convertValue(rawValue any, targetType reflect.Type) (any, error) {
	if isOptionalType(targetType) {
		return convertOptional(rawValue, targetType)
	}

	if rawValue == nil {
		return reflect.Zero(targetType).Interface(), nil
	}

	switch targetType {
	case durationType:
		return convertDuration(rawValue)
	case timeType:
		return convertTime(rawValue)
	}

	out := reflect.New(targetType).Elem()

	switch targetType.Kind() {
	case reflect.String:
		out.SetString(fmt.Sprint(rawValue))

	case reflect.Bool:
		b, err := toBool(rawValue)
		if err != nil {
			return nil, err
		}
		out.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(rawValue, targetType.Bits())
		if err != nil {
			return nil, err
		}
		out.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint(rawValue, targetType.Bits())
		if err != nil {
			return nil, err
		}
		out.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := toFloat(rawValue, targetType.Bits())
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)

	case reflect.Slice:
		return convertSlice(rawValue, targetType)

	case reflect.Interface:
		rv := reflect.ValueOf(rawValue)
		if !rv.Type().AssignableTo(targetType) {
			return nil, fmt.Errorf("cannot assign %T to %s", rawValue, targetType)
		}
		out.Set(rv)

	default:
		return nil, fmt.Errorf("unsupported field type %s", targetType)
	}

	return out.Interface(), nil
}

func convertOptional(rawValue any, targetType reflect.Type) (any, error) {
	out := reflect.New(targetType).Elem()
	if rawValue == nil {
		return out.Interface(), nil
	}

	inner, err := convertValue(rawValue, targetType.Field(0).Type)
	if err != nil {
		return nil, err
	}
	if inner != nil {
		out.Field(0).Set(reflect.ValueOf(inner))
	}
	out.Field(1).SetBool(true)
	return out.Interface(), nil
}

func convertDuration(rawValue any) (any, error) {
	switch v := rawValue.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return d, nil
	case int:
		return time.Duration(v), nil
	case int64:
		return time.Duration(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to time.Duration", rawValue)
	}
}

func convertTime(rawValue any) (any, error) {
	switch v := rawValue.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid time %q (want RFC3339): %w", v, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to time.Time", rawValue)
	}
}

// convertSlice converts []any, []string, or a comma-separated string to a slice.
func convertSlice(rawValue any, targetType reflect.Type) (any, error) {
	var items []any

	switch v := rawValue.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case string:
		parts, err := parseStringSlice(v)
		if err != nil {
			return nil, err
		}
		items = make([]any, len(parts))
		for i, s := range parts {
			items[i] = s
		}
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", rawValue, targetType)
	}

	out := reflect.MakeSlice(targetType, len(items), len(items))
	for i, item := range items {
		elem, err := convertValue(item, targetType.Elem())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if elem != nil {
			out.Index(i).Set(reflect.ValueOf(elem))
		}
	}
	return out.Interface(), nil
}

// parseStringSlice splits a comma-separated list, trimming whitespace around items.
// An empty string yields an empty slice.
func parseStringSlice(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return []string{}, nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// parseBool accepts true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "t", "y":
		return true, nil
	case "false", "0", "no", "off", "f", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func toBool(rawValue any) (bool, error) {
	switch v := rawValue.(type) {
	case bool:
		return v, nil
	case string:
		return parseBool(v)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", rawValue)
	}
}

func toInt(rawValue any, bits int) (int64, error) {
	var n int64
	switch v := rawValue.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, bits)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q: %w", v, err)
		}
		return parsed, nil
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int%d", v, bits)
		}
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		n = int64(v)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", rawValue)
	}

	if bits < 64 && (n < -(1<<(bits-1)) || n > 1<<(bits-1)-1) {
		return 0, fmt.Errorf("value %d overflows int%d", n, bits)
	}
	return n, nil
}

func toUint(rawValue any, bits int) (uint64, error) {
	var n uint64
	switch v := rawValue.(type) {
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, bits)
		if err != nil {
			return 0, fmt.Errorf("invalid unsigned integer %q: %w", v, err)
		}
		return parsed, nil
	case uint64:
		n = v
	case int, int8, int16, int32, int64:
		i := reflect.ValueOf(v).Int()
		if i < 0 {
			return 0, fmt.Errorf("value %d is negative", i)
		}
		n = uint64(i)
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("value %v is not an unsigned integer", v)
		}
		n = uint64(v)
	default:
		return 0, fmt.Errorf("cannot convert %T to uint", rawValue)
	}

	if bits < 64 && n > 1<<bits-1 {
		return 0, fmt.Errorf("value %d overflows uint%d", n, bits)
	}
	return n, nil
}

func toFloat(rawValue any, bits int) (float64, error) {
	switch v := rawValue.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), bits)
		if err != nil {
			return 0, fmt.Errorf("invalid float %q: %w", v, err)
		}
		return f, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", rawValue)
	}
}
