package platform

import (
	"context"

	"github.com/aretw0/refman/pkg/adapters/fs"
)

// Init prepares the library at root and returns its filesystem store.
// Settings come from the options, then from refman.yaml (or WithConfigFile).
//
// The log file is created unless the store is read-only. With versioning
// enabled, the directory is also turned into a git repository.
func Init(root string, opts ...Option) (*fs.Store, error) {
	o := buildOptions(opts)
	store, err := initFS(root, o)
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// Open returns the filesystem store for root without creating anything.
// A missing root or log reads as an empty library; the first append creates them.
func Open(root string, opts ...Option) (*fs.Store, error) {
	return initFS(root, buildOptions(opts))
}

// initFS resolves the settings and builds the store without touching the log.
func initFS(root string, o *options) (*fs.Store, error) {
	cfgPath := o.configPath(root)
	fileCfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	fileCfg.merge(o)

	systemDir, _ := o.config["system_dir"].(string)
	readOnly, _ := o.config["read_only"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	indexCache, _ := o.config["index_cache"].(bool)
	versioning, _ := o.config["versioning"].(bool)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	if o.logger != nil {
		o.logger.Debug("opening library",
			"root", root,
			"config", cfgPath,
			"read_only", readOnly,
			"index_cache", indexCache,
			"versioning", versioning,
		)
	}

	return fs.NewStore(fs.Config{
		Path:         root,
		SystemDir:    systemDir,
		MustExist:    mustExist,
		ReadOnly:     readOnly,
		IndexCache:   indexCache,
		Versioning:   versioning,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	}), nil
}
