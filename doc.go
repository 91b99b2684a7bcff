// Package envrig provides type-safe configuration management with validation and provenance tracking.
//
// Quick Start:
//
//	type Config struct {
//	    Port   int      `conf:"default:8080,min:1024"`
//	    Host   string   `conf:"required"`
//	    Scopes []string `validate:"min=1"`
//	}
//
//	loader := envrig.NewLoader[Config]().
//	    WithSource(sourcefile.New("config.yaml", sourcefile.Options{})).
//	    WithSource(sourceazure.WithPrefix("APP"))
//
//	cfg, err := loader.Load(context.Background())
//
// With APP_SCOPES__0=read and APP_SCOPES__1=write, Scopes is [read write].
// Keys address slice elements with brackets: "scopes[0]", "servers[1].host".
//
// Tag directives: env:VAR, default:val, required, min:N, max:N, oneof:a,b,c, secret, prefix:path, name:path
//
// Rules in `validate` tags use go-playground/validator syntax and run after conf tags.
package envrig
