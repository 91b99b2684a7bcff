package envrig

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Azhovan/envrig/internal/normalize"
)

// maxIndexedLength bounds slices built from "key[N]" entries.
const maxIndexedLength = 10000

// mergedEntry is a configuration value after all sources were merged.
type mergedEntry struct {
	value      any
	sourceName string // Source that provided the value (e.g., "env:APP")
	sourceKey  string // Original key for provenance (e.g., "env:APP_PORT")
}

func (e mergedEntry) source() string {
	if e.sourceKey != "" {
		return e.sourceKey
	}
	return e.sourceName
}

// keyScope resolves key paths for the fields of one struct.
type keyScope struct {
	prefix string
	// relative resolves name and prefix directives under prefix.
	// Set for slice elements, which have no absolute key.
	relative bool
}

func (s keyScope) keyPath(fieldName string, tagCfg tagConfig) string {
	if s.relative && tagCfg.name != "" {
		return normalize.ApplyPrefix(s.prefix, strings.ToLower(tagCfg.name))
	}
	return determineKeyPath(fieldName, tagCfg, s.prefix)
}

func (s keyScope) nested(keyPath string, tagCfg tagConfig) keyScope {
	if s.relative && tagCfg.prefix != "" {
		return keyScope{prefix: normalize.ApplyPrefix(s.prefix, tagCfg.prefix), relative: true}
	}
	return keyScope{prefix: nestedKeyPrefix(keyPath, tagCfg), relative: s.relative}
}

type binder struct {
	data       map[string]mergedEntry
	provFields *[]FieldProvenance
}

// bindStruct populates the struct behind v from merged data.
// Missing values are left as zero values (required checks happen in validation).
// Returns invalid_type errors for values that cannot be converted.
func bindStruct(v reflect.Value, data map[string]mergedEntry, provFields *[]FieldProvenance, fieldPathPrefix, keyPathPrefix string) []FieldError {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	b := &binder{data: data, provFields: provFields}
	return b.bindFields(v, fieldPathPrefix, keyScope{prefix: keyPathPrefix})
}

func (b *binder) bindFields(v reflect.Value, fieldPathPrefix string, scope keyScope) []FieldError {
	var errs []FieldError

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := v.Field(i)
		fieldPath := joinFieldPath(fieldPathPrefix, field.Name)
		tagCfg := parseTag(field.Tag.Get("conf"))
		keyPath := scope.keyPath(field.Name, tagCfg)

		switch {
		case isNestedStruct(field.Type):
			errs = append(errs, b.bindFields(fieldValue, fieldPath, scope.nested(keyPath, tagCfg))...)
		case field.Type.Kind() == reflect.Slice && b.hasIndexedKeys(keyPath):
			errs = append(errs, b.bindIndexed(fieldValue, fieldPath, keyPath, tagCfg.secret)...)
		default:
			if fe := b.bindValue(fieldValue, fieldPath, keyPath, tagCfg); fe != nil {
				errs = append(errs, *fe)
			}
		}
	}

	return errs
}

// bindValue sets a single value from data, the env directive, or the default.
func (b *binder) bindValue(fieldValue reflect.Value, fieldPath, keyPath string, tagCfg tagConfig) *FieldError {
	entry, matchedKey, ok := b.lookup(keyPath, tagCfg.env)

	var raw any
	var sourceName string
	switch {
	case ok:
		raw = entry.value
		sourceName = entry.source()
	case tagCfg.hasDefault:
		raw = tagCfg.defValue
		sourceName = "default"
		matchedKey = keyPath
	default:
		return nil
	}

	converted, err := convertValue(raw, fieldValue.Type())
	if err != nil {
		return &FieldError{
			FieldPath: fieldPath,
			Code:      ErrCodeInvalidType,
			Message:   err.Error(),
		}
	}
	if converted != nil {
		fieldValue.Set(reflect.ValueOf(converted))
	}

	b.record(fieldPath, matchedKey, sourceName, tagCfg.secret)
	return nil
}

// bindIndexed builds a slice from "key[N]" entries. The slice is as long as
// the highest index + 1; indices without data keep their zero value.
func (b *binder) bindIndexed(sliceValue reflect.Value, fieldPath, keyPath string, secret bool) []FieldError {
	indices := b.indices(keyPath)
	if len(indices) == 0 {
		return nil
	}

	highest := indices[len(indices)-1]
	if highest >= maxIndexedLength {
		return []FieldError{{
			FieldPath: fieldPath,
			Code:      ErrCodeInvalidType,
			Message:   fmt.Sprintf("index %d exceeds maximum slice length %d", highest, maxIndexedLength),
		}}
	}

	slice := reflect.MakeSlice(sliceValue.Type(), highest+1, highest+1)
	var errs []FieldError
	for _, i := range indices {
		elemFieldPath := fmt.Sprintf("%s[%d]", fieldPath, i)
		elemKeyPath := normalize.IndexKey(keyPath, i)
		errs = append(errs, b.bindElement(slice.Index(i), elemFieldPath, elemKeyPath, secret)...)
	}
	sliceValue.Set(slice)

	// The field itself is attributed to the source of its first element.
	b.record(fieldPath, keyPath, b.sourceUnder(normalize.IndexKey(keyPath, indices[0])), secret)

	return errs
}

func (b *binder) bindElement(elem reflect.Value, fieldPath, keyPath string, secret bool) []FieldError {
	switch {
	case isNestedStruct(elem.Type()):
		return b.bindFields(elem, fieldPath, keyScope{prefix: keyPath, relative: true})
	case elem.Kind() == reflect.Slice && b.hasIndexedKeys(keyPath):
		return b.bindIndexed(elem, fieldPath, keyPath, secret)
	default:
		if fe := b.bindValue(elem, fieldPath, keyPath, tagConfig{secret: secret}); fe != nil {
			return []FieldError{*fe}
		}
		return nil
	}
}

// lookup finds the entry for a field. An env directive names a variable
// (after prefix stripping) and wins over the derived key when an env source set it.
func (b *binder) lookup(keyPath, envName string) (mergedEntry, string, bool) {
	if envName != "" {
		envKey := normalize.CanonicalIndices(normalize.ArrayKey(normalize.ToLowerDotPath(envName)))
		if entry, ok := b.data[envKey]; ok && strings.HasPrefix(entry.sourceName, "env") {
			return entry, envKey, true
		}
	}

	key := strings.ToLower(keyPath)
	entry, ok := b.data[key]
	return entry, key, ok
}

func (b *binder) hasIndexedKeys(keyPath string) bool {
	return len(b.indices(keyPath)) > 0
}

// indices returns the sorted first-level indices present under keyPath.
func (b *binder) indices(keyPath string) []int {
	prefix := strings.ToLower(keyPath)
	seen := make(map[int]bool)

	for key := range b.data {
		if !strings.HasPrefix(key, prefix+"[") {
			continue
		}
		rest := key[len(prefix):]
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			continue
		}
		// Only "[N]", "[N].x" and "[N][M]" address an element of this slice.
		if tail := rest[end+1:]; tail != "" && tail[0] != '.' && tail[0] != '[' {
			continue
		}
		_, idx, ok := normalize.SplitIndex("x" + rest[:end+1])
		if !ok {
			continue
		}
		seen[idx[0]] = true
	}

	indices := make([]int, 0, len(seen))
	for i := range seen {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// sourceUnder names the source of keyPath, or of the first key below it.
func (b *binder) sourceUnder(keyPath string) string {
	prefix := strings.ToLower(keyPath)
	if entry, ok := b.data[prefix]; ok {
		return entry.sourceName
	}

	keys := make([]string, 0)
	for key := range b.data {
		if strings.HasPrefix(key, prefix+".") || strings.HasPrefix(key, prefix+"[") {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return b.data[keys[0]].sourceName
}

func (b *binder) record(fieldPath, keyPath, sourceName string, secret bool) {
	if b.provFields == nil {
		return
	}
	*b.provFields = append(*b.provFields, FieldProvenance{
		FieldPath:  fieldPath,
		KeyPath:    keyPath,
		SourceName: sourceName,
		Secret:     secret,
	})
}

func joinFieldPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
