package envrig

import (
	"context"
	"errors"
	"time"
)

// Source supplies flat configuration data. Keys are lowercase dot paths
// ("database.host"); slice elements use brackets ("replicas[0].host").
type Source interface {
	// Load returns the current data. An absent optional backend yields an empty map.
	Load(ctx context.Context) (map[string]any, error)

	// Watch reports changes until ctx is done, or returns ErrWatchNotSupported.
	Watch(ctx context.Context) (<-chan ChangeEvent, error)

	// Name identifies the source in provenance ("env:APP", "file:config.yaml").
	Name() string
}

// SourceWithKeys is a Source that also reports the original key behind every
// normalized key (e.g., "database.hosts[0]" → "APP_DATABASE__HOSTS__0").
type SourceWithKeys interface {
	Source

	// LoadWithKeys returns Load's data and, per key, the name it was read from.
	LoadWithKeys(ctx context.Context) (map[string]any, map[string]string, error)
}

// ChangeEvent is sent by Source.Watch. Cause becomes Snapshot.Source.
type ChangeEvent struct {
	At    time.Time
	Cause string
}

// ErrWatchNotSupported is returned by sources that cannot report changes.
var ErrWatchNotSupported = errors.New("envrig: watch not supported by this source")

// Optional records whether a value was configured at all, so an explicit
// zero can be told apart from a missing key.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Get returns the wrapped value and whether it was set.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// OrDefault returns the value if set and defaultVal otherwise.
func (o Optional[T]) OrDefault(defaultVal T) T {
	if o.Set {
		return o.Value
	}
	return defaultVal
}

// Validator checks a bound configuration after the tag rules passed over it.
// Returning a *ValidationError merges its field errors into Load's result;
// any other error aborts the load.
type Validator[T any] interface {
	Validate(ctx context.Context, cfg *T) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc[T any] func(ctx context.Context, cfg *T) error

func (f ValidatorFunc[T]) Validate(ctx context.Context, cfg *T) error {
	return f(ctx, cfg)
}

// Snapshot is one configuration version sent by Loader.Watch.
type Snapshot[T any] struct {
	Config   *T
	Version  int64 // 1 for the initial load
	LoadedAt time.Time
	Source   string // "initial" or the ChangeEvent cause
}
