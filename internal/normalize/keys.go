package normalize

import "strings"

// DefaultSeparator separates nesting levels in environment variable names.
const DefaultSeparator = "__"

// ToLowerDotPath is ToDotPath with DefaultSeparator:
// "API__RATE_LIMIT" becomes "api.rate_limit".
func ToLowerDotPath(key string) string {
	return ToDotPath(key, DefaultSeparator)
}

// ToDotPath lowercases key and turns each separator into a dot.
// An empty separator only lowercases.
func ToDotPath(key, separator string) string {
	if separator != "" && separator != "." {
		key = strings.ReplaceAll(key, separator, ".")
	}
	return strings.ToLower(key)
}

// FieldKey is the key segment for a struct field. Matching ignores case,
// so "MaxConnections" is "maxconnections".
func FieldKey(fieldName string) string {
	return strings.ToLower(fieldName)
}

// ApplyPrefix joins prefix and key with a dot, dropping whichever is empty.
func ApplyPrefix(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}
