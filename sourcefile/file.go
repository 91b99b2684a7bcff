package sourcefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Azhovan/envrig"
	"github.com/Azhovan/envrig/internal/normalize"
)

// Options configures a file source.
type Options struct {
	// Format is "yaml", "json" or "toml". Empty infers it from the extension.
	Format string

	// Required makes a missing file an error instead of an empty source.
	Required bool

	// Logger receives watcher diagnostics. Nil discards them.
	Logger *slog.Logger
}

type decoder struct {
	label     string
	unmarshal func([]byte, any) error
}

var decoders = map[string]decoder{
	"yaml": {"YAML", yaml.Unmarshal},
	"json": {"JSON", json.Unmarshal},
	"toml": {"TOML", toml.Unmarshal},
}

var extensions = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".toml": "toml",
}

type fileSource struct {
	path   string
	opts   Options
	logger *slog.Logger
}

// New returns a source that reads path on every Load.
func New(path string, opts Options) envrig.SourceWithKeys {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &fileSource{
		path:   path,
		opts:   opts,
		logger: logger.With("component", "sourcefile", "path", path),
	}
}

func (f *fileSource) Load(ctx context.Context) (map[string]any, error) {
	data, _, err := f.LoadWithKeys(ctx)
	return data, err
}

// LoadWithKeys parses the file and flattens it. File keys are already
// normalized, so every key maps to itself.
func (f *fileSource) LoadWithKeys(_ context.Context) (map[string]any, map[string]string, error) {
	content, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !f.opts.Required:
		return map[string]any{}, map[string]string{}, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil, fmt.Errorf("required config file not found: %s: %w", f.path, err)
	case err != nil:
		return nil, nil, fmt.Errorf("read config file %s: %w", f.path, err)
	}

	format := f.opts.Format
	if format == "" {
		format = extensions[strings.ToLower(filepath.Ext(f.path))]
	}
	if format == "yml" {
		format = "yaml"
	}
	dec, ok := decoders[format]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported file format: %q (supported: yaml, json, toml)", format)
	}

	var tree map[string]any
	if err := dec.unmarshal(content, &tree); err != nil {
		return nil, nil, fmt.Errorf("parse %s file %s: %w", dec.label, f.path, err)
	}

	data := make(map[string]any)
	keys := make(map[string]string)
	flatten("", tree, data, keys)
	return data, keys, nil
}

// flatten turns nested maps into dot-separated keys. Lists that contain
// maps are split into indexed keys ("servers[0].host"); other lists stay
// whole so they bind to slices directly.
func flatten(prefix string, value any, result map[string]any, originalKeys map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			flatten(normalize.ApplyPrefix(prefix, key), val, result, originalKeys)
		}
	case map[any]any:
		for key, val := range v {
			keyStr, ok := key.(string)
			if !ok {
				continue
			}
			flatten(normalize.ApplyPrefix(prefix, keyStr), val, result, originalKeys)
		}
	case []any:
		if prefix == "" {
			return
		}
		if !containsMap(v) {
			result[prefix] = v
			originalKeys[prefix] = prefix
			return
		}
		for i, elem := range v {
			flatten(normalize.IndexKey(prefix, i), elem, result, originalKeys)
		}
	default:
		if prefix != "" {
			result[prefix] = value
			originalKeys[prefix] = prefix
		}
	}
}

func containsMap(list []any) bool {
	for _, elem := range list {
		switch elem.(type) {
		case map[string]any, map[any]any:
			return true
		}
	}
	return false
}

// Watch reports writes, creations, renames and removals of the file. The
// parent directory is watched so that editors replacing the file are seen.
// Bursts are not coalesced here; Loader.Watch debounces them. The channel
// closes when ctx is done.
func (f *fileSource) Watch(ctx context.Context) (<-chan envrig.ChangeEvent, error) {
	target, err := filepath.Abs(f.path)
	if err != nil {
		return nil, fmt.Errorf("resolve config file %s: %w", f.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	changes := make(chan envrig.ChangeEvent)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error("watcher error", "error", err)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isRelevant(event, target) {
					continue
				}
				f.logger.Debug("config file changed", "op", event.Op.String())
				select {
				case changes <- envrig.ChangeEvent{At: time.Now(), Cause: "file-changed"}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return changes, nil
}

func isRelevant(event fsnotify.Event, target string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == target
}

func (f *fileSource) Name() string {
	return "file:" + filepath.Base(f.path)
}
