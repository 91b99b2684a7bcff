package envrig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Azhovan/envrig/internal/normalize"
)

// reloadDebounce coalesces bursts of change events into one reload.
const reloadDebounce = 100 * time.Millisecond

// Loader builds a T from an ordered list of sources. Later sources override
// earlier ones. A Loader must not be reconfigured while Load or Watch run.
type Loader[T any] struct {
	sources    []Source
	validators []Validator[T]
	strict     bool
	logger     *slog.Logger
}

// NewLoader returns a Loader in strict mode with no sources.
func NewLoader[T any]() *Loader[T] {
	return &Loader[T]{
		strict: true,
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithSource appends src. It overrides every source added before it.
func (l *Loader[T]) WithSource(src Source) *Loader[T] {
	l.sources = append(l.sources, src)
	return l
}

// WithValidator adds a validator that runs after the tag checks.
func (l *Loader[T]) WithValidator(v Validator[T]) *Loader[T] {
	l.validators = append(l.validators, v)
	return l
}

// WithLogger sets the logger for load and reload diagnostics.
func (l *Loader[T]) WithLogger(logger *slog.Logger) *Loader[T] {
	if logger != nil {
		l.logger = logger.With("component", "loader")
	}
	return l
}

// Strict controls whether keys that match no field are rejected. It is on by default.
func (l *Loader[T]) Strict(strict bool) *Loader[T] {
	l.strict = strict
	return l
}

// Load reads every source, merges the results, and binds and validates a new T.
// Field-level problems are reported together in a *ValidationError.
func (l *Loader[T]) Load(ctx context.Context) (*T, error) {
	results, err := l.loadSources(ctx)
	if err != nil {
		return nil, err
	}
	merged, conflicts := l.merge(results)
	if len(conflicts) > 0 {
		return nil, &ValidationError{FieldErrors: conflicts}
	}

	if l.strict {
		if unknown := unknownKeys[T](merged); len(unknown) > 0 {
			return nil, &ValidationError{FieldErrors: unknown}
		}
	}

	cfg := new(T)
	v := reflect.ValueOf(cfg).Elem()

	var prov []FieldProvenance
	fieldErrs := bindStruct(v, merged, &prov, "", "")
	fieldErrs = append(fieldErrs, validateStruct(v)...)

	ruleErrs, err := validateTags(cfg)
	if err != nil {
		return nil, err
	}
	fieldErrs = append(fieldErrs, ruleErrs...)

	for i, validator := range l.validators {
		err := validator.Validate(ctx, cfg)
		if err == nil {
			continue
		}
		var valErr *ValidationError
		if !errors.As(err, &valErr) {
			return nil, fmt.Errorf("validator %d failed: %w", i, err)
		}
		fieldErrs = append(fieldErrs, valErr.FieldErrors...)
	}

	if len(fieldErrs) > 0 {
		return nil, &ValidationError{FieldErrors: fieldErrs}
	}

	storeProvenance(cfg, &Provenance{Fields: prov})
	return cfg, nil
}

type sourceResult struct {
	data         map[string]any
	originalKeys map[string]string
}

// loadSources runs every source concurrently. Results keep registration order.
func (l *Loader[T]) loadSources(ctx context.Context) ([]sourceResult, error) {
	results := make([]sourceResult, len(l.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range l.sources {
		g.Go(func() error {
			var (
				res sourceResult
				err error
			)
			if keyed, ok := src.(SourceWithKeys); ok {
				res.data, res.originalKeys, err = keyed.LoadWithKeys(gctx)
			} else {
				res.data, err = src.Load(gctx)
			}
			if err != nil {
				return fmt.Errorf("load source %s: %w", src.Name(), err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge folds source results into one map keyed by lowercase key path.
// Index groups are canonicalized ("l[00]" is "l[0]"), so a later source
// overrides an element however the earlier one spelled its index. Two keys of
// one source that address the same element are reported as conflicts.
// Environment entries remember the variable they came from
// ("env:APP_DATABASE__PASSWORD"); other sources are named as a whole.
func (l *Loader[T]) merge(results []sourceResult) (map[string]mergedEntry, []FieldError) {
	merged := make(map[string]mergedEntry)
	var conflicts []FieldError
	for i, src := range l.sources {
		name := src.Name()
		isEnv := strings.HasPrefix(name, "env")
		res := results[i]

		spelled := make(map[string]string, len(res.data))
		for _, key := range slices.Sorted(maps.Keys(res.data)) {
			canonical := normalize.CanonicalIndices(strings.ToLower(key))
			if prev, ok := spelled[canonical]; ok {
				conflicts = append(conflicts, FieldError{
					FieldPath: canonical,
					Code:      ErrCodeDuplicateKey,
					Message:   fmt.Sprintf("%s: keys %q and %q address the same element", name, prev, key),
				})
				continue
			}
			spelled[canonical] = key

			entry := mergedEntry{value: res.data[key], sourceName: name, sourceKey: name}
			if orig, ok := res.originalKeys[key]; ok && isEnv {
				entry.sourceKey = "env:" + orig
			}
			merged[canonical] = entry
		}
		l.logger.Debug("source loaded", "source", name, "keys", len(res.data))
	}
	return merged, conflicts
}

// unknownKeys reports merged keys that address no field of T. Indices are
// stripped first, so "servers[0].host" matches Servers []Server{Host}.
func unknownKeys[T any](merged map[string]mergedEntry) []FieldError {
	valid := collectValidKeys(reflect.TypeFor[T](), "")

	var errs []FieldError
	for key := range merged {
		if !valid[normalize.StripIndices(key)] {
			errs = append(errs, FieldError{
				FieldPath: key,
				Code:      ErrCodeUnknownKey,
				Message:   "unknown configuration key (strict mode)",
			})
		}
	}
	return errs
}

// collectValidKeys lists every key a source may set for t, without indices
// ("servers.host").
func collectValidKeys(t reflect.Type, prefix string) map[string]bool {
	valid := make(map[string]bool)
	collectKeys(t, keyScope{prefix: prefix}, valid)
	return valid
}

func collectKeys(t reflect.Type, scope keyScope, valid map[string]bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tags := parseTag(field.Tag.Get("conf"))
		keyPath := strings.ToLower(scope.keyPath(field.Name, tags))
		valid[keyPath] = true
		if tags.env != "" {
			valid[normalize.StripIndices(normalize.ArrayKey(normalize.ToLowerDotPath(tags.env)))] = true
		}

		ft := field.Type
		switch {
		case isOptionalType(ft):
			if inner := ft.Field(0).Type; isNestedStruct(inner) {
				collectKeys(inner, keyScope{prefix: keyPath, relative: scope.relative}, valid)
			}
		case isNestedStruct(ft):
			collectKeys(ft, scope.nested(keyPath, tags), valid)
		case ft.Kind() == reflect.Slice:
			elem := ft.Elem()
			for elem.Kind() == reflect.Slice {
				elem = elem.Elem()
			}
			if isNestedStruct(elem) {
				collectKeys(elem, keyScope{prefix: keyPath, relative: true}, valid)
			}
		}
	}
}

// Watch loads the configuration and reloads it whenever a watchable source
// reports a change. The first snapshot (Version 1, Source "initial") is sent
// right away; each successful reload sends the next version. Failed reloads
// go to the error channel and the previous config stays current. Both
// channels are closed when ctx is done or no source can be watched.
func (l *Loader[T]) Watch(ctx context.Context) (<-chan Snapshot[T], <-chan error, error) {
	cfg, err := l.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initial load failed: %w", err)
	}

	snapshots := make(chan Snapshot[T])
	errs := make(chan error)
	go l.watch(ctx, cfg, snapshots, errs)
	return snapshots, errs, nil
}

func (l *Loader[T]) watch(ctx context.Context, cfg *T, snapshots chan<- Snapshot[T], errs chan<- error) {
	defer close(snapshots)
	defer close(errs)

	version := int64(1)
	if !send(ctx, snapshots, Snapshot[T]{Config: cfg, Version: version, LoadedAt: time.Now(), Source: "initial"}) {
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, watchErrs := l.watchSources(watchCtx)
	for _, err := range watchErrs {
		if !send(ctx, errs, err) {
			return
		}
	}
	if changes == nil {
		return
	}

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-changes:
			if !ok {
				return
			}
			pending = ev.Cause
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			fire = timer.C

		case <-fire:
			fire = nil
			next, err := l.Load(ctx)
			if err != nil {
				l.logger.Warn("reload failed", "cause", pending, "error", err)
				if !send(ctx, errs, fmt.Errorf("reload failed: %w", err)) {
					return
				}
				continue
			}
			version++
			l.logger.Debug("configuration reloaded", "cause", pending, "version", version)
			if !send(ctx, snapshots, Snapshot[T]{Config: next, Version: version, LoadedAt: time.Now(), Source: pending}) {
				return
			}
		}
	}
}

// watchSources starts every watchable source and fans their events into one
// channel, closed once all of them stop. Sources that do not support watching
// are skipped; sources that fail to start are reported and skipped. The
// channel is nil when nothing is being watched.
func (l *Loader[T]) watchSources(ctx context.Context) (<-chan ChangeEvent, []error) {
	var (
		inputs []<-chan ChangeEvent
		errs   []error
	)
	for _, src := range l.sources {
		ch, err := src.Watch(ctx)
		switch {
		case errors.Is(err, ErrWatchNotSupported):
		case err != nil:
			errs = append(errs, fmt.Errorf("watch source %s: %w", src.Name(), err))
		default:
			inputs = append(inputs, ch)
		}
	}
	if len(inputs) == 0 {
		return nil, errs
	}

	out := make(chan ChangeEvent)
	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-in:
					if !ok || !send(ctx, out, ev) {
						return
					}
				}
			}
		})
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, errs
}

// send delivers v unless ctx is done first.
func send[V any](ctx context.Context, ch chan<- V, v V) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
