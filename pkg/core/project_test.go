package core_test

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/refman/pkg/core"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func at(ev core.Event, ts string) core.Event {
	ev.Timestamp = ts
	return ev
}

func TestProject_TagLifecycle(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{Title: "A", InitialTags: []string{"x"}})
	events := []core.Event{
		at(create, "2024-01-01T00:00:01.000Z"),
		at(core.TagAdd(ref.ID, "y"), "2024-01-01T00:00:02.000Z"),
		at(core.TagRemove(ref.ID, "x"), "2024-01-01T00:00:03.000Z"),
	}

	state := core.Project(events)
	require.NotNil(t, state.Ref)
	assert.Equal(t, "A", state.Ref.Title)
	assert.Equal(t, []string{"y"}, state.Ref.Tags)
	assert.Equal(t, "2024-01-01T00:00:01.000Z", state.Ref.CreatedAt)
	assert.Empty(t, state.Relations)
}

func TestProject_TagAddIsSetLike(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{Title: "A", InitialTags: []string{"a", "A ", "b"}})
	events := []core.Event{
		at(create, "t1"),
		at(core.TagAdd(ref.ID, "b"), "t2"),
		at(core.TagAdd(ref.ID, "C"), "t3"),
		at(core.TagAdd(ref.ID, " c"), "t4"),
	}

	state := core.Project(events)
	assert.Equal(t, []string{"a", "b", "c"}, state.Ref.Tags)
}

func TestProject_SnapshotResetsBaseline(t *testing.T) {
	f := steppingFactory(mustTime(t, "2024-05-01T00:00:00Z"))
	ref, create := f.CreateReference(core.CreateParams{Title: "A", Source: "orig"})

	snapRef := ref.Clone()
	snapRef.Title = "B"
	snapRef.Tags = []string{"t2"}

	events := []core.Event{
		create,
		f.Relate(ref.ID, "REF-2", core.RelationCites),
		f.Snapshot(snapRef),
		f.TagAdd(ref.ID, "t3"),
		f.TagRemove(ref.ID, "t2"),
	}
	update, err := f.UpdateMeta(ref.ID, core.MetaPatch{Source: core.Ptr("S")})
	require.NoError(t, err)
	events = append(events, update)

	state := core.Project(events)
	require.NotNil(t, state.Ref)
	assert.Equal(t, core.Reference{
		ID:        ref.ID,
		Title:     "B",
		Authors:   []string{},
		Type:      core.TypeOther,
		Source:    "S",
		Tags:      []string{"t3"},
		CreatedAt: ref.CreatedAt,
	}, *state.Ref)

	// Snapshot does not reset relations.
	assert.Len(t, state.Relations, 1)

	// The snapshot payload was copied, not shared.
	assert.Equal(t, []string{"t2"}, events[2].Payload.(core.SnapshotPayload).Snapshot.Tags)
}

func TestProject_RelateWithoutReference(t *testing.T) {
	state := core.Project([]core.Event{core.Relate("REF-1", "REF-2", core.RelationCites)})

	assert.Nil(t, state.Ref)
	assert.False(t, state.Found())
	assert.Equal(t, []core.RelationEntry{{TargetID: "REF-2", Relation: core.RelationCites}}, state.Relations)
}

func TestProject_RelationsAreNotDeduplicated(t *testing.T) {
	events := []core.Event{
		at(core.Relate("REF-1", "REF-2", core.RelationCites), "t1"),
		at(core.Relate("REF-1", "REF-2", core.RelationCites), "t2"),
		at(core.Relate("REF-1", "REF-3", core.RelationRelated), "t3"),
	}
	assert.Len(t, core.Project(events).Relations, 3)
}

func TestProject_OrphanEventsAreNoOps(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{Title: "A"})
	update, err := core.UpdateMeta(ref.ID, core.MetaPatch{Title: core.Ptr("early")})
	require.NoError(t, err)

	events := []core.Event{
		at(core.TagAdd(ref.ID, "early"), "t1"),
		at(core.TagRemove(ref.ID, "x"), "t2"),
		at(update, "t3"),
		at(create, "t4"),
	}

	state := core.Project(events)
	require.NotNil(t, state.Ref)
	assert.Equal(t, "A", state.Ref.Title)
	assert.Equal(t, []string{}, state.Ref.Tags)
	assert.Equal(t, 3, state.Orphans)
}

func TestProject_UpdateMetaIsPartial(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{
		Title:   "A",
		Authors: []string{"Ada", "Grace"},
		Type:    core.TypeBook,
		Source:  "lib",
	})
	upd, err := core.UpdateMeta(ref.ID, core.MetaPatch{Type: core.Ptr(core.TypeArticle)})
	require.NoError(t, err)

	state := core.Project([]core.Event{at(create, "t1"), at(upd, "t2")})
	assert.Equal(t, "A", state.Ref.Title)
	assert.Equal(t, []string{"Ada", "Grace"}, state.Ref.Authors)
	assert.Equal(t, core.TypeArticle, state.Ref.Type)
	assert.Equal(t, "lib", state.Ref.Source)
}

func TestProject_LastCreateOrSnapshotWins(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{Title: "first"})
	_, recreate := core.CreateReference(core.CreateParams{Title: "second"})
	recreate.RefID = ref.ID

	state := core.Project([]core.Event{at(recreate, "t2"), at(create, "t1")})
	assert.Equal(t, "second", state.Ref.Title)
	assert.Equal(t, "t2", state.Ref.CreatedAt)
}

func TestProject_OrderIndependentOfInputOrder(t *testing.T) {
	f := steppingFactory(mustTime(t, "2024-01-01T00:00:00Z"))
	ref, create := f.CreateReference(core.CreateParams{Title: "A", InitialTags: []string{"x"}})
	upd, err := f.UpdateMeta(ref.ID, core.MetaPatch{Title: core.Ptr("A2")})
	require.NoError(t, err)

	events := []core.Event{
		create,
		f.TagAdd(ref.ID, "y"),
		f.TagRemove(ref.ID, "x"),
		upd,
		f.Relate(ref.ID, "REF-2", core.RelationCites),
		f.Relate(ref.ID, "REF-3", core.RelationExtends),
		f.TagAdd(ref.ID, "x"),
	}

	reversed := slices.Clone(events)
	slices.Reverse(reversed)

	shuffled := []core.Event{events[3], events[6], events[0], events[5], events[1], events[4], events[2]}

	want := core.Project(events)
	assert.Equal(t, want, core.Project(reversed))
	assert.Equal(t, want, core.Project(shuffled))
	assert.Equal(t, []string{"y", "x"}, want.Ref.Tags)
	assert.Equal(t, "A2", want.Ref.Title)
}

func TestProject_StableForEqualTimestamps(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{Title: "A"})
	events := []core.Event{
		at(create, "t"),
		at(core.TagAdd(ref.ID, "x"), "t"),
		at(core.TagRemove(ref.ID, "x"), "t"),
	}
	assert.Equal(t, []string{}, core.Project(events).Ref.Tags)

	events[1], events[2] = events[2], events[1]
	assert.Equal(t, []string{"x"}, core.Project(events).Ref.Tags)
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	ref, create := core.CreateReference(core.CreateParams{Title: "A", InitialTags: []string{"x"}})
	events := []core.Event{at(core.TagAdd(ref.ID, "y"), "t2"), at(create, "t1")}

	_ = core.Project(events)
	_ = core.Project(events)

	assert.Equal(t, core.EventTagAdd, events[0].Type)
	assert.Equal(t, []string{"x"}, events[1].Payload.(core.CreatePayload).Tags)
}

func TestProject_IgnoresUnknownEvents(t *testing.T) {
	var ev core.Event
	require.NoError(t, json.Unmarshal([]byte(`{"eventId":"EVT-1","refId":"REF-1","type":"Archive","timestamp":"t2","payload":{"why":"old"}}`), &ev))

	_, create := core.CreateReference(core.CreateParams{Title: "A"})
	create.RefID = "REF-1"

	state := core.Project([]core.Event{at(create, "t1"), ev})
	require.NotNil(t, state.Ref)
	assert.Equal(t, "A", state.Ref.Title)
	assert.Equal(t, 0, state.Orphans)
}

func TestProject_Empty(t *testing.T) {
	state := core.Project(nil)
	assert.Nil(t, state.Ref)
	assert.NotNil(t, state.Relations)
	assert.Empty(t, state.Relations)
}

func TestProjectAll_GroupsByReference(t *testing.T) {
	a, createA := core.CreateReference(core.CreateParams{Title: "A"})
	b, createB := core.CreateReference(core.CreateParams{Title: "B"})
	events := []core.Event{
		at(createB, "t1"),
		at(createA, "t2"),
		at(core.TagAdd(a.ID, "x"), "t3"),
		at(core.Relate("REF-ghost", b.ID, core.RelationCites), "t4"),
	}

	all := core.ProjectAll(events)
	require.Len(t, all, 3)
	assert.Equal(t, b.ID, all[0].RefID)
	assert.Equal(t, a.ID, all[1].RefID)
	assert.Equal(t, []string{"x"}, all[1].Ref.Tags)
	assert.Equal(t, "REF-ghost", all[2].RefID)
	assert.Nil(t, all[2].Ref)
	assert.Len(t, all[2].Relations, 1)
}
