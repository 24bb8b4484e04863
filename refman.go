package refman

import (
	"log/slog"

	"github.com/aretw0/refman/internal/platform"
	"github.com/aretw0/refman/pkg/adapters/fs"
	"github.com/aretw0/refman/pkg/core"
)

// --- Types ---

// Reference is the projected view of a bibliographic reference.
type Reference = core.Reference

// Event is one immutable record of the log.
type Event = core.Event

// Service is the reference manager operating over an event store.
type Service = core.Service

// Record is a reference with its relations, as exported and imported.
type Record = core.Record

// Store is the JSON-lines event store.
type Store = fs.Store

// --- Configuration ---

// Option defines a functional option for configuring refman.
type Option = platform.Option

// FileConfig mirrors refman.yaml.
type FileConfig = platform.FileConfig

// ConfigFileName is the optional settings file looked up in the root directory.
const ConfigFileName = platform.ConfigFileName

// WithLogger sets the logger for the store and the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a custom event store.
func WithStore(store core.EventStore) Option {
	return platform.WithStore(store)
}

// WithSystemDir sets the directory holding derived state (default ".refman").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithReadOnly refuses appends and never creates files.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithMustExist fails when the root directory is missing.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithIndexCache persists the reference id index.
func WithIndexCache(enabled bool) Option {
	return platform.WithIndexCache(enabled)
}

// WithVersioning commits the log to git after every append.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithEventBuffer sets the size of the watch broker buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithWatcherErrorHandler receives errors raised while watching.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// WithCreate(false) opens the library without creating files on disk.
func WithCreate(enabled bool) Option {
	return platform.WithCreate(enabled)
}

// WithConfigFile reads settings from path instead of <root>/refman.yaml.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// --- Factory ---

// New creates a Service over the library at root.
func New(root string, opts ...Option) (*core.Service, error) {
	return platform.New(root, opts...)
}

// Init prepares the library at root and returns its store.
func Init(root string, opts ...Option) (*fs.Store, error) {
	return platform.Init(root, opts...)
}

// Open returns the store for root without creating anything on disk.
func Open(root string, opts ...Option) (*fs.Store, error) {
	return platform.Open(root, opts...)
}

// --- Utils ---

// FindRoot looks upwards from startDir for a library root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// LoadConfig reads a refman.yaml file; a missing file yields the zero value.
func LoadConfig(path string) (FileConfig, error) {
	return platform.LoadConfig(path)
}

// SaveConfig writes a refman.yaml file.
func SaveConfig(path string, cfg FileConfig) error {
	return platform.SaveConfig(path, cfg)
}

// ConfigPath returns the settings file used for root under the given options.
func ConfigPath(root string, opts ...Option) string {
	return platform.ConfigPath(root, opts...)
}
