package platform

import (
	"github.com/aretw0/refman/pkg/core"
)

// New wires a Service on top of the library at root.
//
//	svc, err := refman.New("./library", refman.WithIndexCache(true))
//
// A store injected with WithStore is used as is; otherwise the filesystem store is
// initialized, or only opened under WithCreate(false).
func New(root string, opts ...Option) (*core.Service, error) {
	o := buildOptions(opts)

	var store core.EventStore = o.store
	if store == nil {
		open := Init
		if create, ok := o.config["create"].(bool); ok && !create {
			open = Open
		}
		fsStore, err := open(root, opts...)
		if err != nil {
			return nil, err
		}
		store = fsStore
	}

	serviceOpts := []core.ServiceOption{core.WithServiceLogger(o.logger)}
	if size, ok := o.config["event_buffer"].(int); ok {
		serviceOpts = append(serviceOpts, core.WithEventBuffer(size))
	} else if cfg, err := LoadConfig(o.configPath(root)); err == nil && cfg.EventBuffer > 0 {
		serviceOpts = append(serviceOpts, core.WithEventBuffer(cfg.EventBuffer))
	}

	return core.NewService(store, serviceOpts...), nil
}
