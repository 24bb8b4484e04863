package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the variant tag of an Event.
type EventType string

const (
	EventCreate     EventType = "Create"
	EventTagAdd     EventType = "TagAdd"
	EventTagRemove  EventType = "TagRemove"
	EventUpdateMeta EventType = "UpdateMeta"
	EventRelate     EventType = "Relate"
	EventSnapshot   EventType = "Snapshot"
)

// Event is an immutable fact appended to the log.
// Timestamp is an ISO-8601 string and the only key used to order replay.
type Event struct {
	EventID   string
	RefID     string
	Type      EventType
	Timestamp string
	Payload   Payload
}

// Payload is the variant-specific body of an Event.
// The concrete types are CreatePayload, TagAddPayload, TagRemovePayload,
// MetaPatch, RelatePayload, SnapshotPayload, UnknownPayload and
// MalformedPayload.
type Payload interface {
	Kind() EventType
}

// CreatePayload initializes a reference.
type CreatePayload struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Type    RefType  `json:"type"`
	Source  string   `json:"source"`
	Tags    []string `json:"tags,omitempty"`
}

func (CreatePayload) Kind() EventType { return EventCreate }

// TagAddPayload carries one normalized tag.
type TagAddPayload struct {
	Tag string `json:"tag"`
}

func (TagAddPayload) Kind() EventType { return EventTagAdd }

// TagRemovePayload carries one normalized tag.
type TagRemovePayload struct {
	Tag string `json:"tag"`
}

func (TagRemovePayload) Kind() EventType { return EventTagRemove }

// MetaPatch is a partial update over title, authors, type and source.
// Nil fields are absent from the patch; a non-nil empty Authors slice clears the list.
type MetaPatch struct {
	Title   *string
	Authors []string
	Type    *RefType
	Source  *string
}

func (MetaPatch) Kind() EventType { return EventUpdateMeta }

// Empty reports whether the patch sets no field.
func (p MetaPatch) Empty() bool {
	return p.Title == nil && p.Authors == nil && p.Type == nil && p.Source == nil
}

type metaPatchWire struct {
	Title   *string   `json:"title,omitempty"`
	Authors *[]string `json:"authors,omitempty"`
	Type    *RefType  `json:"type,omitempty"`
	Source  *string   `json:"source,omitempty"`
}

func (p MetaPatch) MarshalJSON() ([]byte, error) {
	w := metaPatchWire{Title: p.Title, Type: p.Type, Source: p.Source}
	if p.Authors != nil {
		authors := p.Authors
		w.Authors = &authors
	}
	return json.Marshal(w)
}

func (p *MetaPatch) UnmarshalJSON(data []byte) error {
	var w metaPatchWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = MetaPatch{Title: w.Title, Type: w.Type, Source: w.Source}
	if w.Authors != nil {
		p.Authors = *w.Authors
		if p.Authors == nil {
			p.Authors = []string{}
		}
	}
	return nil
}

// RelatePayload links a reference to another one. The target may not exist.
type RelatePayload struct {
	TargetID string   `json:"targetId"`
	Relation Relation `json:"relation"`
}

func (RelatePayload) Kind() EventType { return EventRelate }

// SnapshotPayload replaces the projected reference wholesale.
type SnapshotPayload struct {
	Snapshot Reference `json:"snapshot"`
}

func (SnapshotPayload) Kind() EventType { return EventSnapshot }

// UnknownPayload keeps the raw body of an event type this version does not know.
// It is written back verbatim and ignored by Project.
type UnknownPayload struct {
	Type EventType
	Raw  json.RawMessage
}

func (p UnknownPayload) Kind() EventType { return p.Type }

// MalformedPayload keeps the raw body of a known event type whose payload
// could not be decoded. Like UnknownPayload it round-trips verbatim and
// Project treats it as a no-op.
type MalformedPayload struct {
	Type EventType
	Raw  json.RawMessage
	Err  error
}

func (p MalformedPayload) Kind() EventType { return p.Type }

type eventWire struct {
	EventID   string          `json:"eventId"`
	RefID     string          `json:"refId"`
	Type      EventType       `json:"type"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := eventWire{
		EventID:   e.EventID,
		RefID:     e.RefID,
		Type:      e.Type,
		Timestamp: e.Timestamp,
	}
	switch p := e.Payload.(type) {
	case nil:
		w.Payload = json.RawMessage("null")
	case UnknownPayload:
		w.Payload = rawOrNull(p.Raw)
	case MalformedPayload:
		w.Payload = rawOrNull(p.Raw)
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		// Valid JSON with mistyped fields still yields an event; the fields
		// that did decode are kept and the rest stay empty.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return err
		}
	}
	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		payload = MalformedPayload{Type: w.Type, Raw: bytes.Clone(w.Payload), Err: err}
	}
	*e = Event{
		EventID:   w.EventID,
		RefID:     w.RefID,
		Type:      w.Type,
		Timestamp: w.Timestamp,
		Payload:   payload,
	}
	return nil
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	switch t {
	case EventCreate:
		var p CreatePayload
		return p.decode(raw)
	case EventTagAdd:
		var p TagAddPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventTagRemove:
		var p TagRemovePayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventUpdateMeta:
		var p MetaPatch
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventRelate:
		var p RelatePayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventSnapshot:
		var p SnapshotPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return UnknownPayload{Type: t, Raw: bytes.Clone(raw)}, nil
	}
}

func (p CreatePayload) decode(raw json.RawMessage) (Payload, error) {
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Authors == nil {
		p.Authors = []string{}
	}
	return p, nil
}

// Validate checks the common fields and that the payload matches the type tag.
func (e Event) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event has no eventId", ErrInvalidArgument)
	case e.RefID == "":
		return fmt.Errorf("%w: event %s has no refId", ErrInvalidArgument, e.EventID)
	case e.Type == "":
		return fmt.Errorf("%w: event %s has no type", ErrInvalidArgument, e.EventID)
	case e.Timestamp == "":
		return fmt.Errorf("%w: event %s has no timestamp", ErrInvalidArgument, e.EventID)
	case e.Payload == nil:
		return fmt.Errorf("%w: event %s has no payload", ErrInvalidArgument, e.EventID)
	case e.Payload.Kind() != e.Type:
		return fmt.Errorf("%w: event %s is %s but carries a %s payload", ErrInvalidArgument, e.EventID, e.Type, e.Payload.Kind())
	}
	return nil
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%s %s %s (%s)", e.Timestamp, e.Type, e.RefID, e.EventID)
}
