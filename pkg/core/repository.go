package core

import "context"

// EventStore defines the contract for persisting and reading reference events.
// Adhering to this interface keeps the service independent of the storage mechanism.
//
// Implementations are append-only: a stored event is never rewritten or removed.
type EventStore interface {
	// Append persists a single event at the end of the log.
	Append(ctx context.Context, ev Event) error

	// ListEvents returns stored events in log order.
	// A non-empty refID keeps only the events whose RefID matches exactly.
	// A store with no log yet returns an empty slice and no error.
	ListEvents(ctx context.Context, refID string) ([]Event, error)

	// ListReferences returns the distinct reference ids present in the log, in first-seen order.
	ListReferences(ctx context.Context) ([]string, error)

	// Initialize ensures the underlying storage is ready (e.g. creates the log file).
	Initialize(ctx context.Context) error
}

// Watchable defines an interface for stores that can observe appended events.
type Watchable interface {
	// Watch emits events appended after the call whose RefID matches pattern.
	// An empty pattern matches every reference.
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

type contextKey string

// ChangeReasonKey is the context key for passing a commit message to versioned stores.
const ChangeReasonKey contextKey = "change_reason"
