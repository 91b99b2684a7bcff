package sourceenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"

	"github.com/Azhovan/envrig"
	"github.com/Azhovan/envrig/internal/normalize"
)

// ErrInvalidEncoding is returned when a variable name or value is not valid UTF-8.
var ErrInvalidEncoding = errors.New("envrig: environment variable is not valid UTF-8")

// EncodingError reports the variable that could not be decoded.
type EncodingError struct {
	Name string // Variable name, with invalid bytes escaped
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("environment variable %q is not valid UTF-8", e.Name)
}

func (e *EncodingError) Unwrap() error {
	return ErrInvalidEncoding
}

// Options configures environment variable source behavior.
type Options struct {
	// Prefix filters vars starting with prefix (stripped before normalization).
	// Empty = load all vars.
	// Prefix matching behavior is controlled by CaseSensitive.
	Prefix string

	// PrefixSeparator is expected between Prefix and the rest of the name.
	// "APP" with PrefixSeparator "_" matches APP_PORT. It is not added again
	// when Prefix already ends with it. Empty = Prefix is matched literally.
	PrefixSeparator string

	// Separator splits a name into levels (default: "__").
	Separator string

	// IgnoreEmpty drops variables whose value is the empty string.
	IgnoreEmpty bool

	// CaseSensitive controls prefix matching (default: false).
	// When false, prefix matching is case-insensitive (APP_ matches app_, App_, etc.).
	// When true, prefix must match exactly.
	// Keys are always normalized to lowercase after prefix stripping.
	CaseSensitive bool

	// DotenvFiles are read with godotenv before the process environment.
	// Process variables win over file entries. Missing files are an error.
	DotenvFiles []string

	// Environ lists variables as "KEY=value" pairs. Defaults to os.Environ.
	Environ func() []string
}

type envSource struct {
	opts Options
}

// New creates an environment variable source.
func New(opts Options) envrig.Source {
	return newSource(opts)
}

// NewWithKeys creates an environment variable source that also reports
// the original variable name of every key.
func NewWithKeys(opts Options) envrig.SourceWithKeys {
	return newSource(opts)
}

func newSource(opts Options) *envSource {
	if opts.Separator == "" {
		opts.Separator = normalize.DefaultSeparator
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	return &envSource{opts: opts}
}

// Load scans environment variables, filters by prefix, and normalizes keys.
func (e *envSource) Load(ctx context.Context) (map[string]any, error) {
	result, _, err := e.LoadWithKeys(ctx)
	return result, err
}

// LoadWithKeys is Load plus a map from normalized key to variable name.
func (e *envSource) LoadWithKeys(ctx context.Context) (map[string]any, map[string]string, error) {
	vars, err := e.environ()
	if err != nil {
		return nil, nil, err
	}

	prefix := e.fullPrefix()
	result := make(map[string]any)
	originalKeys := make(map[string]string)

	for _, env := range vars {
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		if !utf8.ValidString(name) || !utf8.ValidString(value) {
			return nil, nil, &EncodingError{Name: strings.ToValidUTF8(name, "�")}
		}

		key := name
		if prefix != "" {
			var hasPrefix bool
			if e.opts.CaseSensitive {
				hasPrefix = strings.HasPrefix(key, prefix)
			} else {
				hasPrefix = strings.HasPrefix(strings.ToUpper(key), strings.ToUpper(prefix))
			}

			if !hasPrefix {
				continue
			}
			key = key[len(prefix):]
		}

		if key == "" {
			continue
		}

		if e.opts.IgnoreEmpty && value == "" {
			continue
		}

		// Normalize: FOO__BAR → foo.bar
		normalizedKey := normalize.ToDotPath(key, e.opts.Separator)
		result[normalizedKey] = value
		originalKeys[normalizedKey] = name
	}

	return result, originalKeys, nil
}

// environ merges dotenv file entries under the process environment.
func (e *envSource) environ() ([]string, error) {
	vars := e.opts.Environ()
	if len(e.opts.DotenvFiles) == 0 {
		return vars, nil
	}

	fileVars, err := godotenv.Read(e.opts.DotenvFiles...)
	if err != nil {
		return nil, fmt.Errorf("read dotenv files: %w", err)
	}

	merged := make([]string, 0, len(fileVars)+len(vars))
	for name, value := range fileVars {
		merged = append(merged, name+"="+value)
	}
	// Later entries overwrite earlier ones in LoadWithKeys.
	return append(merged, vars...), nil
}

func (e *envSource) fullPrefix() string {
	prefix := e.opts.Prefix
	sep := e.opts.PrefixSeparator
	if prefix == "" || sep == "" {
		return prefix
	}
	if e.opts.CaseSensitive {
		if strings.HasSuffix(prefix, sep) {
			return prefix
		}
	} else if strings.HasSuffix(strings.ToUpper(prefix), strings.ToUpper(sep)) {
		return prefix
	}
	return prefix + sep
}

// Watch returns ErrWatchNotSupported (env vars don't change at runtime).
func (e *envSource) Watch(ctx context.Context) (<-chan envrig.ChangeEvent, error) {
	return nil, envrig.ErrWatchNotSupported
}

// Name returns "env" or "env:<prefix>".
func (e *envSource) Name() string {
	if e.opts.Prefix == "" {
		return "env"
	}
	return "env:" + e.opts.Prefix
}
