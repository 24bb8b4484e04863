package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string     `json:"path"`
	SystemDir     string     `json:"system_dir"`
	IndexedRefs   int        `json:"indexed_refs"`
	IndexCache    bool       `json:"index_cache"`
	ReadOnly      bool       `json:"read_only"`
	Versioning    bool       `json:"versioning"`
	WatcherActive bool       `json:"watcher_active"`
	LastAppend    *time.Time `json:"last_append,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreState{
		Path:          s.Path,
		SystemDir:     s.config.SystemDir,
		IndexedRefs:   s.cache.Len(),
		IndexCache:    s.config.IndexCache,
		ReadOnly:      s.config.ReadOnly,
		Versioning:    s.config.Versioning,
		WatcherActive: s.watcherActive,
		LastAppend:    s.lastAppend,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)

func (s *Store) setWatcherActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherActive = active
}

func (s *Store) recordAppend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.lastAppend = &now
}
