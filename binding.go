package envrig

import (
	"strings"

	"github.com/Azhovan/envrig/internal/normalize"
)

// tagConfig holds parsed directives from a struct field's `conf` tag.
type tagConfig struct {
	env        string   // Environment variable name (env:VAR_NAME)
	name       string   // Custom key path (name:custom.path)
	prefix     string   // Prefix for nested structs (prefix:foo)
	defValue   string   // Default value (default:value)
	min        string   // Minimum constraint (min:N)
	max        string   // Maximum constraint (max:M)
	oneof      []string // Allowed values (oneof:a,b,c)
	required   bool     // Field is required (required or required:true)
	secret     bool     // Field is secret (secret or secret:true)
	hasDefault bool     // Whether a default directive was present
}

// directiveNames are the prefixes that open a new directive inside a tag.
var directiveNames = []string{"env:", "name:", "prefix:", "default:", "min:", "max:", "oneof:", "required", "secret"}

// parseTag reads a `conf` tag such as "required,default:8080,oneof:a,b".
// Values are kept verbatim so an empty default stays meaningful.
func parseTag(tag string) tagConfig {
	var cfg tagConfig
	for _, directive := range splitDirectives(tag) {
		key, value, _ := strings.Cut(strings.TrimSpace(directive), ":")
		switch strings.TrimSpace(key) {
		case "env":
			cfg.env = value
		case "name":
			cfg.name = value
		case "prefix":
			cfg.prefix = value
		case "default":
			cfg.defValue, cfg.hasDefault = value, true
		case "min":
			cfg.min = value
		case "max":
			cfg.max = value
		case "oneof":
			if value == "" {
				continue
			}
			cfg.oneof = strings.Split(value, ",")
			for i, opt := range cfg.oneof {
				cfg.oneof[i] = strings.TrimSpace(opt)
			}
		case "required":
			cfg.required = flagValue(value)
		case "secret":
			cfg.secret = flagValue(value)
		}
	}
	return cfg
}

// flagValue reads a boolean directive. Only an explicit "false" turns it off.
func flagValue(value string) bool {
	return value != "false"
}

// splitDirectives splits a tag on commas, except for the commas that
// separate oneof options. A oneof list runs until a comma followed by
// another directive name.
func splitDirectives(tag string) []string {
	var out []string
	start, inOneof := 0, false
	for i := 0; i < len(tag); i++ {
		if !inOneof && strings.HasPrefix(tag[i:], "oneof:") {
			inOneof = true
			i += len("oneof:") - 1
			continue
		}
		if tag[i] != ',' || (inOneof && !startsWithDirective(tag[i+1:])) {
			continue
		}
		out = append(out, tag[start:i])
		start, inOneof = i+1, false
	}
	if start < len(tag) {
		out = append(out, tag[start:])
	}
	return out
}

func startsWithDirective(s string) bool {
	s = strings.TrimSpace(s)
	for _, d := range directiveNames {
		if strings.HasPrefix(s, d) {
			return true
		}
	}
	return false
}

// determineKeyPath resolves the lowercase configuration key for a field.
// A name directive replaces the derived path; otherwise the field name is
// appended to parentPrefix.
func determineKeyPath(fieldName string, tagCfg tagConfig, parentPrefix string) string {
	if tagCfg.name != "" {
		return strings.ToLower(tagCfg.name)
	}
	if parentPrefix == "" {
		return normalize.FieldKey(fieldName)
	}
	return strings.ToLower(parentPrefix) + "." + normalize.FieldKey(fieldName)
}

// nestedKeyPrefix resolves the key prefix for the fields of a nested struct.
func nestedKeyPrefix(keyPath string, tagCfg tagConfig) string {
	if tagCfg.prefix != "" {
		return tagCfg.prefix
	}
	return keyPath
}
