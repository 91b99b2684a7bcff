package envrig

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// validateStruct checks the conf tag constraints of every exported field of
// cfg, descending into nested structs and slices of structs.
func validateStruct(cfg reflect.Value) []FieldError {
	return validateFields(cfg, "")
}

func validateFields(v reflect.Value, parentPath string) []FieldError {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	var errs []FieldError
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		path := field.Name
		if parentPath != "" {
			path = parentPath + "." + field.Name
		}
		tags := parseTag(field.Tag.Get("conf"))
		fv := v.Field(i)

		switch {
		case isOptionalType(fv.Type()):
			// Unset optionals carry no value to check.
			if fv.Field(1).Bool() {
				errs = append(errs, validateField(fv.Field(0), path, tags)...)
			}
		case fv.Kind() == reflect.Slice && isNestedStruct(fv.Type().Elem()):
			errs = append(errs, validateField(fv, path, tags)...)
			for j := range fv.Len() {
				errs = append(errs, validateFields(fv.Index(j), fmt.Sprintf("%s[%d]", path, j))...)
			}
		case isNestedStruct(fv.Type()):
			errs = append(errs, validateFields(fv, path)...)
		default:
			errs = append(errs, validateField(fv, path, tags)...)
		}
	}
	return errs
}

// validateField applies required, min, max and oneof to one value.
// A zero value only fails required; the other checks skip it.
func validateField(v reflect.Value, path string, tags tagConfig) []FieldError {
	if isZeroValue(v) {
		if tags.required {
			return []FieldError{{FieldPath: path, Code: ErrCodeRequired, Message: "field is required but not provided"}}
		}
		return nil
	}

	var errs []FieldError
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		errs = checkRange(path, "value", v.Int(), tags, parseInt64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		errs = checkRange(path, "value", v.Uint(), tags, parseUint64)
	case reflect.Float32, reflect.Float64:
		errs = checkRange(path, "value", v.Float(), tags, parseFloat64)
	case reflect.String:
		errs = checkRange(path, "string length", int64(v.Len()), tags, parseInt64)
	}

	if len(tags.oneof) > 0 {
		if s, ok := scalarString(v); ok && !slices.Contains(tags.oneof, s) {
			errs = append(errs, FieldError{
				FieldPath: path,
				Code:      ErrCodeOneOf,
				Message:   fmt.Sprintf("value %q must be one of: %s", s, strings.Join(tags.oneof, ", ")),
			})
		}
	}
	return errs
}

// checkRange compares value against the min and max directives.
// Bounds that do not parse as N are ignored.
func checkRange[N cmp.Ordered](path, what string, value N, tags tagConfig, parse func(string) (N, error)) []FieldError {
	var errs []FieldError
	if tags.min != "" {
		if lo, err := parse(tags.min); err == nil && value < lo {
			errs = append(errs, FieldError{
				FieldPath: path,
				Code:      ErrCodeMin,
				Message:   fmt.Sprintf("%s %v is below minimum %v", what, value, lo),
			})
		}
	}
	if tags.max != "" {
		if hi, err := parse(tags.max); err == nil && value > hi {
			errs = append(errs, FieldError{
				FieldPath: path,
				Code:      ErrCodeMax,
				Message:   fmt.Sprintf("%s %v exceeds maximum %v", what, value, hi),
			})
		}
	}
	return errs
}

func parseInt64(s string) (int64, error)     { return strconv.ParseInt(s, 10, 64) }
func parseUint64(s string) (uint64, error)   { return strconv.ParseUint(s, 10, 64) }
func parseFloat64(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// scalarString renders the value the way it would appear in a oneof list.
func scalarString(v reflect.Value) (string, bool) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	default:
		return "", false
	}
}

// isZeroValue treats empty strings and collections as zero, even when non-nil.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
