// Package sourcefile loads configuration from YAML, JSON, or TOML files.
//
// Format is auto-detected from extension (.yaml, .json, .toml). Lists of
// tables are flattened into indexed keys, so
//
//	servers:
//	  - host: a
//
// becomes "servers[0].host", the same key sourceazure produces for
// APP_SERVERS__0__HOST.
//
// Example:
//
//	source := sourcefile.New("config.yaml", sourcefile.Options{Required: true})
//	loader := envrig.NewLoader[Config]().WithSource(source)
package sourcefile
