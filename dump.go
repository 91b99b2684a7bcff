package envrig

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/Azhovan/envrig/internal/normalize"
)

// DumpOption configures DumpEffective.
type DumpOption func(*dumpOptions)

type dumpOptions struct {
	withSources bool
	asJSON      bool
	indent      string
}

// WithSources appends the source of every value to text output.
func WithSources() DumpOption {
	return func(o *dumpOptions) { o.withSources = true }
}

// AsJSON writes a nested JSON document instead of key: value lines.
func AsJSON() DumpOption {
	return func(o *dumpOptions) { o.asJSON = true }
}

// WithIndent sets the JSON indentation. The default is two spaces; an empty
// string writes compact JSON.
func WithIndent(indent string) DumpOption {
	return func(o *dumpOptions) { o.indent = indent }
}

// DumpEffective writes the effective configuration to w with secrets
// replaced by "***redacted***". Text output lists one flattened key per line,
// in field order.
func DumpEffective[T any](w io.Writer, cfg *T, opts ...DumpOption) error {
	if cfg == nil {
		return ErrNilConfig
	}

	o := dumpOptions{indent: "  "}
	for _, opt := range opts {
		opt(&o)
	}

	v := reflect.ValueOf(cfg).Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("envrig: cannot dump %s, want a struct", v.Type())
	}
	prov := provenanceIndex(cfg)

	if o.asJSON {
		return dumpJSON(w, jsonTree(v, "", prov), o.indent)
	}
	return dumpText(w, v, prov, o.withSources)
}

func dumpText(w io.Writer, v reflect.Value, prov map[string]*FieldProvenance, withSources bool) error {
	var b strings.Builder
	walkLeaves(v, "", keyScope{}, prov, func(l configLeaf) {
		value := "<not set>"
		if l.set {
			value = textValue(l.value, l.secret)
		}
		b.WriteString(l.keyPath + ": " + value)
		if withSources && l.source != "" {
			b.WriteString(" (source: " + l.source + ")")
		}
		b.WriteByte('\n')
	})

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}

func dumpJSON(w io.Writer, tree map[string]any, indent string) error {
	var (
		data []byte
		err  error
	)
	if indent == "" {
		data, err = json.Marshal(tree)
	} else {
		data, err = json.MarshalIndent(tree, "", indent)
	}
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}

// jsonTree mirrors the struct layout. Keys are lowercased field names, or
// the last segment of a name directive.
func jsonTree(v reflect.Value, fieldPrefix string, prov map[string]*FieldProvenance) map[string]any {
	out := make(map[string]any)
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldPath := joinFieldPath(fieldPrefix, field.Name)
		tags := parseTag(field.Tag.Get("conf"))
		fv := v.Field(i)

		key := normalize.FieldKey(field.Name)
		if tags.name != "" {
			key = tags.name[strings.LastIndexByte(tags.name, '.')+1:]
		}
		secret := tags.secret
		if p := prov[fieldPath]; p != nil {
			secret = secret || p.Secret
		}

		switch {
		case isOptionalType(field.Type):
			out[key] = nil
			if fv.Field(1).Bool() {
				out[key] = plainValue(fv.Field(0), secret)
			}
		case isNestedStruct(field.Type):
			out[key] = jsonTree(fv, fieldPath, prov)
		case field.Type.Kind() == reflect.Slice && isNestedStruct(field.Type.Elem()):
			elems := make([]any, fv.Len())
			for j := range elems {
				elems[j] = jsonTree(fv.Index(j), fmt.Sprintf("%s[%d]", fieldPath, j), prov)
			}
			out[key] = elems
		default:
			out[key] = plainValue(fv, secret)
		}
	}
	return out
}
