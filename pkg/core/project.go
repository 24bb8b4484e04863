package core

import (
	"cmp"
	"slices"
)

// Project replays events into the current state of a reference.
//
// Events are ordered by Timestamp; ties keep their input order. Replay never fails:
// tag and metadata events seen before any Create or Snapshot are absorbed as no-ops
// (and counted in Orphans), unknown event types and malformed payloads are skipped.
// Relate events accumulate whether or not a reference exists.
//
// The input slice is not modified.
func Project(events []Event) ProjectionState {
	state := ProjectionState{Relations: []RelationEntry{}}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	for _, ev := range sorted {
		apply(&state, ev)
	}
	return state
}

func apply(state *ProjectionState, ev Event) {
	switch p := ev.Payload.(type) {
	case CreatePayload:
		authors := cloneStrings(p.Authors)
		if authors == nil {
			authors = []string{}
		}
		state.Ref = &Reference{
			ID:        ev.RefID,
			Title:     p.Title,
			Authors:   authors,
			Type:      p.Type,
			Source:    p.Source,
			Tags:      dedupe(normalizeTags(p.Tags)),
			CreatedAt: ev.Timestamp,
		}

	case SnapshotPayload:
		ref := p.Snapshot.Clone()
		state.Ref = &ref

	case TagAddPayload:
		if state.Ref == nil {
			state.Orphans++
			return
		}
		t := NormalizeTag(p.Tag)
		if !slices.Contains(state.Ref.Tags, t) {
			state.Ref.Tags = append(state.Ref.Tags, t)
		}

	case TagRemovePayload:
		if state.Ref == nil {
			state.Orphans++
			return
		}
		t := NormalizeTag(p.Tag)
		state.Ref.Tags = slices.DeleteFunc(state.Ref.Tags, func(x string) bool { return x == t })

	case MetaPatch:
		if state.Ref == nil {
			state.Orphans++
			return
		}
		if p.Title != nil {
			state.Ref.Title = *p.Title
		}
		if p.Authors != nil {
			state.Ref.Authors = cloneStrings(p.Authors)
		}
		if p.Type != nil {
			state.Ref.Type = *p.Type
		}
		if p.Source != nil {
			state.Ref.Source = *p.Source
		}

	case RelatePayload:
		state.Relations = append(state.Relations, RelationEntry{TargetID: p.TargetID, Relation: p.Relation})

	default:
		// Unknown, malformed or missing payloads are ignored.
	}
}

// dedupe keeps the first occurrence of each tag.
func dedupe(tags []string) []string {
	out := tags[:0]
	for _, t := range tags {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Projection is the replay result of one reference within a mixed log.
type Projection struct {
	RefID string
	ProjectionState
}

// ProjectAll groups a mixed log by RefID and replays each group.
// Results follow the first-seen order of reference ids.
func ProjectAll(events []Event) []Projection {
	var order []string
	byRef := make(map[string][]Event)
	for _, ev := range events {
		if _, seen := byRef[ev.RefID]; !seen {
			order = append(order, ev.RefID)
		}
		byRef[ev.RefID] = append(byRef[ev.RefID], ev)
	}

	out := make([]Projection, 0, len(order))
	for _, id := range order {
		out = append(out, Projection{RefID: id, ProjectionState: Project(byRef[id])})
	}
	return out
}
