package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// RefPrefix prefixes reference identifiers.
	RefPrefix = "REF"
	// EventPrefix prefixes event identifiers.
	EventPrefix = "EVT"

	// TimestampLayout renders UTC instants with millisecond precision so that
	// lexical order equals chronological order.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// 36^6, the number of distinct six-character base36 suffixes.
const randomSpace = 2176782336

// NewID returns an identifier of the form <prefix>-<base36 unix millis>-<6 base36 chars>.
func NewID(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return prefix + "-" + ts + "-" + shortRandom()
}

func shortRandom() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[8:]) % randomSpace
	s := strconv.FormatUint(n, 36)
	return strings.Repeat("0", 6-len(s)) + s
}

// FormatTimestamp renders t the way events are stamped.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// EventFactory builds well-formed events.
// The zero value uses NewID and the system clock.
type EventFactory struct {
	NewID func(prefix string) string
	Now   func() time.Time
}

// DefaultFactory backs the package-level constructors.
var DefaultFactory = &EventFactory{}

func (f *EventFactory) id(prefix string) string {
	if f == nil || f.NewID == nil {
		return NewID(prefix)
	}
	return f.NewID(prefix)
}

func (f *EventFactory) now() string {
	if f == nil || f.Now == nil {
		return FormatTimestamp(time.Now())
	}
	return FormatTimestamp(f.Now())
}

func (f *EventFactory) event(refID string, payload Payload) Event {
	return Event{
		EventID:   f.id(EventPrefix),
		RefID:     refID,
		Type:      payload.Kind(),
		Timestamp: f.now(),
		Payload:   payload,
	}
}

// CreateParams describes a new reference. Only Title is required by callers;
// the rest default to no authors, TypeOther and an empty source.
type CreateParams struct {
	Title       string
	Authors     []string
	Type        RefType
	Source      string
	InitialTags []string
}

// CreateReference allocates a new reference and the Create event that records it.
func (f *EventFactory) CreateReference(params CreateParams) (Reference, Event) {
	ref := Reference{
		ID:      f.id(RefPrefix),
		Title:   params.Title,
		Authors: cloneStrings(params.Authors),
		Type:    params.Type,
		Source:  params.Source,
		Tags:    normalizeTags(params.InitialTags),
	}
	if ref.Authors == nil {
		ref.Authors = []string{}
	}
	if ref.Type == "" {
		ref.Type = TypeOther
	}

	payload := CreatePayload{
		Title:   ref.Title,
		Authors: cloneStrings(ref.Authors),
		Type:    ref.Type,
		Source:  ref.Source,
	}
	if len(ref.Tags) > 0 {
		payload.Tags = cloneStrings(ref.Tags)
	}

	ev := f.event(ref.ID, payload)
	ref.CreatedAt = ev.Timestamp
	return ref, ev
}

// TagAdd records a tag addition. The tag is normalized; an empty result is accepted.
func (f *EventFactory) TagAdd(refID, tag string) Event {
	return f.event(refID, TagAddPayload{Tag: NormalizeTag(tag)})
}

// TagRemove records a tag removal. The tag is normalized; an empty result is accepted.
func (f *EventFactory) TagRemove(refID, tag string) Event {
	return f.event(refID, TagRemovePayload{Tag: NormalizeTag(tag)})
}

// UpdateMeta records a partial metadata update. The patch is embedded verbatim.
func (f *EventFactory) UpdateMeta(refID string, patch MetaPatch) (Event, error) {
	if patch.Empty() {
		return Event{}, fmt.Errorf("%w: update requires at least one field", ErrInvalidArgument)
	}
	if patch.Authors != nil {
		patch.Authors = cloneStrings(patch.Authors)
	}
	return f.event(refID, patch), nil
}

// Relate records a relation to targetID. The target is not checked for existence.
func (f *EventFactory) Relate(refID, targetID string, relation Relation) Event {
	return f.event(refID, RelatePayload{TargetID: targetID, Relation: relation})
}

// Snapshot records the full state of ref, resetting the projection baseline.
func (f *EventFactory) Snapshot(ref Reference) Event {
	return f.event(ref.ID, SnapshotPayload{Snapshot: ref.Clone()})
}

// CreateReference uses DefaultFactory.
func CreateReference(params CreateParams) (Reference, Event) {
	return DefaultFactory.CreateReference(params)
}

// TagAdd uses DefaultFactory.
func TagAdd(refID, tag string) Event {
	return DefaultFactory.TagAdd(refID, tag)
}

// TagRemove uses DefaultFactory.
func TagRemove(refID, tag string) Event {
	return DefaultFactory.TagRemove(refID, tag)
}

// UpdateMeta uses DefaultFactory.
func UpdateMeta(refID string, patch MetaPatch) (Event, error) {
	return DefaultFactory.UpdateMeta(refID, patch)
}

// Relate uses DefaultFactory.
func Relate(refID, targetID string, relation Relation) Event {
	return DefaultFactory.Relate(refID, targetID, relation)
}

// Snapshot uses DefaultFactory.
func Snapshot(ref Reference) Event {
	return DefaultFactory.Snapshot(ref)
}

// Ptr returns a pointer to v. It keeps MetaPatch literals short.
func Ptr[T any](v T) *T {
	return &v
}
