package platform

import (
	"log/slog"

	"github.com/aretw0/refman/pkg/core"
)

// options holds the internal configuration for the reference manager.
type options struct {
	store      core.EventStore
	logger     *slog.Logger
	configFile string
	config     map[string]any
}

// Option defines a functional option for configuring refman.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		config: make(map[string]any),
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for the store and the service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a custom event store (e.g. a mock).
// When set, New skips the filesystem store entirely.
func WithStore(store core.EventStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSystemDir sets the name of the directory holding derived state (default ".refman").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithReadOnly enables read-only mode: appends return core.ErrReadOnly and
// nothing is created on disk.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithMustExist fails initialization when the root directory is missing.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithIndexCache persists the reference id index under the system directory.
func WithIndexCache(enabled bool) Option {
	return func(o *options) {
		o.config["index_cache"] = enabled
	}
}

// WithVersioning commits the log to git after every append. Off by default.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["versioning"] = enabled
	}
}

// WithEventBuffer sets the size of the watch broker buffer.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithWatcherErrorHandler registers a callback for errors raised while watching
// (malformed lines, fsnotify failures). Without it they are only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithCreate controls whether New prepares the library on disk (default true).
// With false the store is opened as is, so reads leave no files behind.
func WithCreate(enabled bool) Option {
	return func(o *options) {
		o.config["create"] = enabled
	}
}

// WithConfigFile reads settings from the given YAML file instead of <root>/refman.yaml.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}
