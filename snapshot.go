package envrig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"
)

// MaxSnapshotSize caps the encoded size of a snapshot file (100MB).
const MaxSnapshotSize = 100 << 20

// SnapshotVersion is the format version written by WriteSnapshot.
const SnapshotVersion = "1.0"

// Snapshot errors.
var (
	ErrSnapshotTooLarge   = errors.New("envrig: snapshot exceeds 100MB size limit")
	ErrNilConfig          = errors.New("envrig: config is nil")
	ErrUnsupportedVersion = errors.New("envrig: unsupported snapshot version")
)

var readableVersions = []string{"1.0"}

// ConfigSnapshot is a point-in-time copy of a loaded configuration.
type ConfigSnapshot struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// Config holds flattened values keyed like the sources address them
	// ("database.host", "servers[0].port"). Secrets are redacted.
	Config map[string]any `json:"config"`

	Provenance []FieldProvenance `json:"provenance"`
}

// SnapshotOption configures CreateSnapshot.
type SnapshotOption func(*snapshotOptions)

type snapshotOptions struct {
	exclude []string
}

// WithExcludeFields drops the given keys ("database.password") from the
// snapshot. Matching ignores case.
func WithExcludeFields(keys ...string) SnapshotOption {
	return func(o *snapshotOptions) { o.exclude = append(o.exclude, keys...) }
}

// CreateSnapshot captures cfg and its provenance. Unset Optional fields
// are left out.
func CreateSnapshot[T any](cfg *T, opts ...SnapshotOption) (*ConfigSnapshot, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	var o snapshotOptions
	for _, opt := range opts {
		opt(&o)
	}

	snap := &ConfigSnapshot{
		Version:   SnapshotVersion,
		Timestamp: time.Now().UTC(),
		Config:    applyExclusions(flattenConfig(cfg), o.exclude),
	}
	if prov, ok := GetProvenance(cfg); ok {
		snap.Provenance = prov.Fields
	}
	return snap, nil
}

func flattenConfig[T any](cfg *T) map[string]any {
	out := make(map[string]any)
	if cfg == nil {
		return out
	}
	v := reflect.ValueOf(cfg).Elem()
	if v.Kind() != reflect.Struct {
		return out
	}

	walkLeaves(v, "", keyScope{}, provenanceIndex(cfg), func(l configLeaf) {
		if l.set {
			out[l.keyPath] = plainValue(l.value, l.secret)
		}
	})
	return out
}

// applyExclusions returns config without the excluded keys. config itself
// is never modified.
func applyExclusions(config map[string]any, exclude []string) map[string]any {
	if len(exclude) == 0 {
		return config
	}

	drop := make(map[string]struct{}, len(exclude))
	for _, key := range exclude {
		drop[strings.ToLower(key)] = struct{}{}
	}

	out := make(map[string]any, len(config))
	for key, value := range config {
		if _, ok := drop[strings.ToLower(key)]; !ok {
			out[key] = value
		}
	}
	return out
}

// ExpandPath replaces {{timestamp}} in template with the current UTC time.
func ExpandPath(template string) string {
	return ExpandPathWithTime(template, time.Now())
}

// ExpandPathWithTime replaces every {{timestamp}} in template with t in UTC,
// formatted as 20060102-150405.
func ExpandPathWithTime(template string, t time.Time) string {
	return strings.ReplaceAll(template, "{{timestamp}}", t.UTC().Format("20060102-150405"))
}

// WriteSnapshot writes snap as indented JSON with mode 0600. A {{timestamp}}
// in pathTemplate expands to snap.Timestamp, so file names match their
// content. The file is written to a temporary name in the target directory
// and renamed into place.
func WriteSnapshot(snap *ConfigSnapshot, pathTemplate string) error {
	if snap == nil {
		return ErrNilConfig
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if len(data) > MaxSnapshotSize {
		return ErrSnapshotTooLarge
	}

	target := ExpandPathWithTime(pathTemplate, snap.Timestamp)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	renamed = true
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (*ConfigSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxSnapshotSize {
		return nil, ErrSnapshotTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap ConfigSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if !slices.Contains(readableVersions, snap.Version) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, snap.Version)
	}
	return &snap, nil
}
