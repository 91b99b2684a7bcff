// Package sourceenv loads configuration from environment variables.
//
// Key normalization: FOO__BAR → foo.bar, FOO_BAR → foo_bar, LIST__0 → list.0
//
// Numeric segments are left as plain path segments; wrap the source with
// sourceazure to address slice elements.
//
// Example:
//
//	source := sourceenv.New(sourceenv.Options{Prefix: "APP_"})
//	loader := envrig.NewLoader[Config]().WithSource(source)
package sourceenv
