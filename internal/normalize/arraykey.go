package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// numericSegment matches a digit-only path segment together with the dot before it
// and the dot (or end of key) after it.
var numericSegment = regexp.MustCompile(`\.(\d+)($|\.)`)

// ArrayKey rewrites numeric path segments into bracketed index notation.
// The dot in front of the digits is dropped, a trailing dot is kept.
// Matches never overlap, so in "a.0.1" only the first run is rewritten.
// Examples:
//   - "scopes.0" → "scopes[0]"
//   - "client.1.secret" → "client[1].secret"
//   - "client.10.scopes.999" → "client[10].scopes[999]"
//   - "weird_key.0a" → "weird_key.0a"
func ArrayKey(key string) string {
	if !strings.Contains(key, ".") {
		return key
	}
	return numericSegment.ReplaceAllString(key, "[$1]$2")
}

// IndexKey returns the key addressing element i of the sequence at prefix.
func IndexKey(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}

// SplitIndex splits a single path segment such as "servers[0]" or "matrix[1][2]"
// into its name and indices. ok is false when the segment has no well-formed index.
func SplitIndex(segment string) (name string, indices []int, ok bool) {
	open := strings.IndexByte(segment, '[')
	if open <= 0 {
		return segment, nil, false
	}

	name = segment[:open]
	rest := segment[open:]
	for rest != "" {
		if rest[0] != '[' {
			return segment, nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 2 {
			return segment, nil, false
		}
		n, valid := parseIndex(rest[1:end])
		if !valid {
			return segment, nil, false
		}
		indices = append(indices, n)
		rest = rest[end+1:]
	}

	return name, indices, true
}

// StripIndices removes every "[N]" group from a key.
// Example: "servers[0].tags[1]" → "servers.tags"
func StripIndices(key string) string {
	if !strings.Contains(key, "[") {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '[' {
			if end := strings.IndexByte(key[i:], ']'); end > 0 {
				if _, ok := parseIndex(key[i+1 : i+end]); ok {
					i += end
					continue
				}
			}
		}
		b.WriteByte(key[i])
	}
	return b.String()
}

// CanonicalIndices drops leading zeros inside every "[N]" group, so keys
// that address the same element compare equal: "l[00]" becomes "l[0]" and
// "grid[007].x" becomes "grid[7].x". Other brackets are left untouched.
func CanonicalIndices(key string) string {
	if !strings.Contains(key, "[0") {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		b.WriteByte(key[i])
		if key[i] != '[' {
			continue
		}
		end := strings.IndexByte(key[i:], ']')
		if end < 2 {
			continue
		}
		digits := key[i+1 : i+end]
		if _, ok := parseIndex(digits); !ok {
			continue
		}
		trimmed := strings.TrimLeft(digits, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		b.WriteString(trimmed)
		b.WriteByte(']')
		i += end
	}
	return b.String()
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
