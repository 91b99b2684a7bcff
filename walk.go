package envrig

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Azhovan/envrig/internal/normalize"
)

// redacted replaces secret values in dumps and snapshots.
const redacted = "***redacted***"

// configLeaf is one value reached while walking a loaded configuration.
type configLeaf struct {
	keyPath string
	value   reflect.Value
	set     bool // false for an Optional that was never set
	secret  bool
	source  string
}

// walkLeaves visits the values of a config struct in field order. Nested
// structs and slices of structs are expanded, so every leaf has its own key
// ("servers[0].host"). Key paths recorded at load time take precedence over
// derived ones.
func walkLeaves(v reflect.Value, fieldPrefix string, scope keyScope, prov map[string]*FieldProvenance, visit func(configLeaf)) {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldPath := joinFieldPath(fieldPrefix, field.Name)
		tags := parseTag(field.Tag.Get("conf"))
		fv := v.Field(i)
		p := prov[fieldPath]

		keyPath := scope.keyPath(field.Name, tags)
		if p != nil && p.KeyPath != "" {
			keyPath = p.KeyPath
		}

		if isNestedStruct(field.Type) {
			walkLeaves(fv, fieldPath, scope.nested(keyPath, tags), prov, visit)
			continue
		}
		if field.Type.Kind() == reflect.Slice && isNestedStruct(field.Type.Elem()) {
			for j := range fv.Len() {
				elemScope := keyScope{prefix: normalize.IndexKey(keyPath, j), relative: true}
				walkLeaves(fv.Index(j), fmt.Sprintf("%s[%d]", fieldPath, j), elemScope, prov, visit)
			}
			continue
		}

		leaf := configLeaf{keyPath: keyPath, value: fv, set: true, secret: tags.secret}
		if p != nil {
			leaf.secret = leaf.secret || p.Secret
			leaf.source = p.SourceName
		}
		if isOptionalType(field.Type) {
			leaf.value, leaf.set = fv.Field(0), fv.Field(1).Bool()
		}
		visit(leaf)
	}
}

// plainValue converts a field into a value encoding/json renders the way
// it was configured: durations and times become strings.
func plainValue(v reflect.Value, secret bool) any {
	if secret {
		return redacted
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Type() {
	case durationType:
		return time.Duration(v.Int()).String()
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.String {
			out := make([]string, v.Len())
			for i := range out {
				out[i] = v.Index(i).String()
			}
			return out
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = plainValue(v.Index(i), false)
		}
		return out
	case reflect.Pointer, reflect.Interface, reflect.Map:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// textValue renders a field for the text dump. Strings are quoted so empty
// and whitespace values stay visible.
func textValue(v reflect.Value, secret bool) string {
	if secret {
		return redacted
	}
	if !v.IsValid() {
		return "<nil>"
	}

	switch v.Type() {
	case durationType:
		return time.Duration(v.Int()).String()
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.String:
		return strconv.Quote(v.String())
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.String {
			items := make([]string, v.Len())
			for i := range items {
				items[i] = v.Index(i).String()
			}
			return "[" + strings.Join(items, ", ") + "]"
		}
	}
	return fmt.Sprint(v.Interface())
}
