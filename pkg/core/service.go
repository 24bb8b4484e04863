package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultEventBuffer is the size of the watch broker buffer when none is configured.
const DefaultEventBuffer = 100

// Service handles the business logic for references.
type Service struct {
	store           EventStore
	factory         *EventFactory
	logger          *slog.Logger
	mu              sync.RWMutex
	eventBufferSize int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFactory overrides the event factory (ids and clock).
func WithFactory(f *EventFactory) ServiceOption {
	return func(s *Service) {
		s.factory = f
	}
}

// WithServiceLogger sets the logger used by the service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEventBuffer sets the size of the watch broker buffer.
func WithEventBuffer(size int) ServiceOption {
	return func(s *Service) {
		s.eventBufferSize = size
	}
}

// NewService creates a new Service.
func NewService(store EventStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:           store,
		factory:         DefaultFactory,
		eventBufferSize: DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.eventBufferSize <= 0 {
		s.eventBufferSize = DefaultEventBuffer
	}
	return s
}

// Add creates a reference and appends its Create event.
func (s *Service) Add(ctx context.Context, params CreateParams) (Reference, error) {
	if params.Title == "" {
		return Reference{}, fmt.Errorf("%w: reference title cannot be empty", ErrInvalidArgument)
	}
	ref, ev := s.factory.CreateReference(params)
	if err := s.store.Append(ctx, ev); err != nil {
		return Reference{}, err
	}
	s.logger.Debug("reference created", "ref", ref.ID, "event", ev.EventID)
	return ref, nil
}

// AddTag appends one TagAdd event per tag. Tags normalizing to "" are skipped.
func (s *Service) AddTag(ctx context.Context, refID string, tags ...string) error {
	return s.appendTags(ctx, refID, tags, s.factory.TagAdd)
}

// RemoveTag appends one TagRemove event per tag. Tags normalizing to "" are skipped.
func (s *Service) RemoveTag(ctx context.Context, refID string, tags ...string) error {
	return s.appendTags(ctx, refID, tags, s.factory.TagRemove)
}

func (s *Service) appendTags(ctx context.Context, refID string, tags []string, build func(string, string) Event) error {
	if _, err := s.Require(ctx, refID); err != nil {
		return err
	}
	for _, tag := range tags {
		if NormalizeTag(tag) == "" {
			continue
		}
		ev := build(refID, tag)
		if err := s.store.Append(ctx, ev); err != nil {
			return err
		}
		s.logger.Debug("tag event appended", "ref", refID, "type", ev.Type, "tag", NormalizeTag(tag))
	}
	return nil
}

// Update appends an UpdateMeta event for an existing reference.
func (s *Service) Update(ctx context.Context, refID string, patch MetaPatch) error {
	ev, err := s.factory.UpdateMeta(refID, patch)
	if err != nil {
		return err
	}
	if _, err := s.Require(ctx, refID); err != nil {
		return err
	}
	return s.store.Append(ctx, ev)
}

// Relate appends a Relate event. Only the source reference must exist.
func (s *Service) Relate(ctx context.Context, refID, targetID string, relation Relation) error {
	if targetID == "" {
		return fmt.Errorf("%w: relation target cannot be empty", ErrInvalidArgument)
	}
	if _, err := s.Require(ctx, refID); err != nil {
		return err
	}
	return s.store.Append(ctx, s.factory.Relate(refID, targetID, relation))
}

// Snapshot appends a Snapshot of the current projection of refID.
func (s *Service) Snapshot(ctx context.Context, refID string) (Event, error) {
	ref, err := s.Require(ctx, refID)
	if err != nil {
		return Event{}, err
	}
	ev := s.factory.Snapshot(ref)
	if err := s.store.Append(ctx, ev); err != nil {
		return Event{}, err
	}
	s.logger.Debug("snapshot appended", "ref", refID, "event", ev.EventID)
	return ev, nil
}

// Get replays the history of refID. Absence is reported by a nil Ref, not an error.
func (s *Service) Get(ctx context.Context, refID string) (ProjectionState, error) {
	if refID == "" {
		return ProjectionState{}, fmt.Errorf("%w: reference ID cannot be empty", ErrInvalidArgument)
	}
	events, err := s.store.ListEvents(ctx, refID)
	if err != nil {
		return ProjectionState{}, err
	}
	state := Project(events)
	if state.Orphans > 0 {
		s.logger.Warn("orphan events ignored during replay", "ref", refID, "count", state.Orphans)
	}
	return state, nil
}

// Require returns the projected reference or ErrNotFound.
func (s *Service) Require(ctx context.Context, refID string) (Reference, error) {
	state, err := s.Get(ctx, refID)
	if err != nil {
		return Reference{}, err
	}
	if state.Ref == nil {
		return Reference{}, fmt.Errorf("%w: %s", ErrNotFound, refID)
	}
	return *state.Ref, nil
}

// ListIDs returns the distinct reference ids in first-seen order.
func (s *Service) ListIDs(ctx context.Context) ([]string, error) {
	return s.store.ListReferences(ctx)
}

// List projects every reference in a single pass over the log.
// A non-empty tagPattern (doublestar syntax, e.g. "ml/**") keeps references with at least one matching tag.
// References whose history holds no Create or Snapshot are omitted.
func (s *Service) List(ctx context.Context, tagPattern string) ([]Reference, error) {
	if tagPattern != "" && !doublestar.ValidatePattern(tagPattern) {
		return nil, fmt.Errorf("%w: bad tag pattern %q", ErrInvalidArgument, tagPattern)
	}

	events, err := s.store.ListEvents(ctx, "")
	if err != nil {
		return nil, err
	}

	projections := ProjectAll(events)
	refs := make([]Reference, 0, len(projections))
	for _, p := range projections {
		if p.Ref == nil {
			continue
		}
		if tagPattern != "" && !matchesAnyTag(tagPattern, p.Ref.Tags) {
			continue
		}
		refs = append(refs, *p.Ref)
	}
	return refs, nil
}

func matchesAnyTag(pattern string, tags []string) bool {
	pattern = NormalizeTag(pattern)
	for _, t := range tags {
		if ok, _ := doublestar.Match(pattern, t); ok {
			return true
		}
	}
	return false
}

// Search returns the references whose title, authors or source contain query,
// ignoring case, in first-seen order. An empty query is rejected.
func (s *Service) Search(ctx context.Context, query string) ([]Reference, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", ErrInvalidArgument)
	}

	refs, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	matches := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		text := strings.Join([]string{ref.Title, strings.Join(ref.Authors, ", "), ref.Source}, "\n")
		if strings.Contains(strings.ToLower(text), q) {
			matches = append(matches, ref)
		}
	}
	return matches, nil
}

// Events returns the raw history, optionally restricted to refID.
func (s *Service) Events(ctx context.Context, refID string) ([]Event, error) {
	return s.store.ListEvents(ctx, refID)
}

// Watch observes appended events if the store supports it.
// The returned channel is buffered so a slow consumer does not stall the store's watcher.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.store.(Watchable)
	if !ok {
		return nil, errors.New("store does not support watching")
	}

	upstream, err := w.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	size := s.eventBufferSize
	s.mu.RUnlock()

	out := make(chan Event, size)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-upstream:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
