package sourceazure

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Azhovan/envrig"
	"github.com/Azhovan/envrig/internal/normalize"
	"github.com/Azhovan/envrig/sourceenv"
)

// defaultPrefixSeparator sits between the prefix and the variable name.
const defaultPrefixSeparator = "_"

// ErrKeyCollision is returned when two variables rewrite to the same key,
// such as A__0 and A[0]. Keeping either one would silently drop the other.
var ErrKeyCollision = errors.New("sourceazure: variables map to the same key")

// Environment is an immutable environment source. Setters return a copy.
type Environment struct {
	opts sourceenv.Options
}

var _ envrig.SourceWithKeys = Environment{}

// New creates an Environment that reads all variables.
func New() Environment {
	return FromEnvironment(sourceenv.Options{})
}

// WithPrefix creates an Environment that reads variables named PREFIX_*.
func WithPrefix(prefix string) Environment {
	return New().Prefix(prefix)
}

// FromEnvironment wraps fully specified reader options.
// Unset separators take the package defaults.
func FromEnvironment(opts sourceenv.Options) Environment {
	if opts.PrefixSeparator == "" {
		opts.PrefixSeparator = defaultPrefixSeparator
	}
	if opts.Separator == "" {
		opts.Separator = normalize.DefaultSeparator
	}
	return Environment{opts: opts}
}

// Prefix returns a copy that reads variables named PREFIX_*.
func (e Environment) Prefix(prefix string) Environment {
	e.opts.Prefix = prefix
	return e
}

// Separator returns a copy that splits names into levels on s.
func (e Environment) Separator(s string) Environment {
	e.opts.Separator = s
	return e
}

// IgnoreEmpty returns a copy that drops variables with empty values when ignore is true.
func (e Environment) IgnoreEmpty(ignore bool) Environment {
	e.opts.IgnoreEmpty = ignore
	return e
}

// Dotenv returns a copy that also reads the given .env files.
// Process variables win over file entries.
func (e Environment) Dotenv(paths ...string) Environment {
	e.opts.DotenvFiles = append(append([]string(nil), e.opts.DotenvFiles...), paths...)
	return e
}

// Options returns the reader options this Environment collects with.
func (e Environment) Options() sourceenv.Options {
	opts := e.opts
	opts.DotenvFiles = append([]string(nil), e.opts.DotenvFiles...)
	return opts
}

// Load collects the environment and rewrites numeric segments into index notation.
func (e Environment) Load(ctx context.Context) (map[string]any, error) {
	result, _, err := e.LoadWithKeys(ctx)
	return result, err
}

// LoadWithKeys is Load plus a map from rewritten key to variable name.
// Reader errors are returned as-is. The result has one entry per collected
// variable; a rewrite that would merge two of them fails with ErrKeyCollision.
func (e Environment) LoadWithKeys(ctx context.Context) (map[string]any, map[string]string, error) {
	data, originalKeys, err := e.reader().LoadWithKeys(ctx)
	if err != nil {
		return nil, nil, err
	}

	result := make(map[string]any, len(data))
	names := make(map[string]string, len(originalKeys))
	from := make(map[string]string, len(data))
	for _, key := range slices.Sorted(maps.Keys(data)) {
		arrayKey := normalize.ArrayKey(key)
		if prev, ok := from[arrayKey]; ok {
			return nil, nil, fmt.Errorf("%w: %s and %s both become %q",
				ErrKeyCollision, variableName(originalKeys, prev), variableName(originalKeys, key), arrayKey)
		}
		from[arrayKey] = key

		result[arrayKey] = data[key]
		if name, ok := originalKeys[key]; ok {
			names[arrayKey] = name
		}
	}

	return result, names, nil
}

func variableName(originalKeys map[string]string, key string) string {
	if name, ok := originalKeys[key]; ok {
		return name
	}
	return key
}

// Watch returns ErrWatchNotSupported (env vars don't change at runtime).
func (e Environment) Watch(ctx context.Context) (<-chan envrig.ChangeEvent, error) {
	return nil, envrig.ErrWatchNotSupported
}

// Name returns "env" or "env:<prefix>".
func (e Environment) Name() string {
	return e.reader().Name()
}

func (e Environment) reader() envrig.SourceWithKeys {
	return sourceenv.NewWithKeys(e.opts)
}
