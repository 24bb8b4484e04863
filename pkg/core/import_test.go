package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/refman/pkg/core"
)

func TestService_Import(t *testing.T) {
	ctx := context.TODO()

	records := []core.Record{
		{
			Reference: core.Reference{ID: "REF-a", Title: "Imported", Type: "Book", Tags: []string{"DB", "db", " "}, CreatedAt: "2020-01-01T00:00:00.000Z"},
			Relations: []core.RelationEntry{{TargetID: "REF-b", Relation: "cites"}},
		},
		{
			Reference: core.Reference{ID: "REF-b", Title: "Second"},
		},
	}

	t.Run("adds new references", func(t *testing.T) {
		svc, store := newService(t)

		res, err := svc.Import(ctx, records, false)
		require.NoError(t, err)
		assert.Equal(t, core.ImportResult{Added: 2}, res)
		// Two snapshots and one relation.
		assert.Len(t, store.events, 3)

		state, err := svc.Get(ctx, "REF-a")
		require.NoError(t, err)
		require.True(t, state.Found())
		assert.Equal(t, core.TypeBook, state.Ref.Type)
		assert.Equal(t, []string{"db"}, state.Ref.Tags)
		assert.Equal(t, []string{}, state.Ref.Authors)
		assert.Equal(t, "2020-01-01T00:00:00.000Z", state.Ref.CreatedAt)
		assert.Equal(t, []core.RelationEntry{{TargetID: "REF-b", Relation: core.RelationCites}}, state.Relations)

		second, err := svc.Require(ctx, "REF-b")
		require.NoError(t, err)
		assert.Equal(t, core.TypeOther, second.Type)
		assert.NotEmpty(t, second.CreatedAt)
	})

	t.Run("merge skips existing ids", func(t *testing.T) {
		svc, store := newService(t)
		_, err := svc.Import(ctx, records[:1], false)
		require.NoError(t, err)
		before := len(store.events)

		changed := []core.Record{{Reference: core.Reference{ID: "REF-a", Title: "Changed"}}, records[1]}
		res, err := svc.Import(ctx, changed, false)
		require.NoError(t, err)
		assert.Equal(t, core.ImportResult{Added: 1, Skipped: 1}, res)
		assert.Len(t, store.events, before+1)

		kept, err := svc.Require(ctx, "REF-a")
		require.NoError(t, err)
		assert.Equal(t, "Imported", kept.Title)
	})

	t.Run("overwrite replaces without duplicating relations", func(t *testing.T) {
		svc, store := newService(t)
		_, err := svc.Import(ctx, records, false)
		require.NoError(t, err)
		before := len(store.events)

		again := []core.Record{records[0]}
		again[0].Title = "Replaced"
		res, err := svc.Import(ctx, again, true)
		require.NoError(t, err)
		assert.Equal(t, core.ImportResult{Replaced: 1}, res)
		assert.Len(t, store.events, before+1)

		state, err := svc.Get(ctx, "REF-a")
		require.NoError(t, err)
		assert.Equal(t, "Replaced", state.Ref.Title)
		assert.Len(t, state.Relations, 1)
	})

	t.Run("invalid records append nothing", func(t *testing.T) {
		bad := map[string][]core.Record{
			"missing id":       {{Reference: core.Reference{Title: "No id"}}},
			"missing title":    {{Reference: core.Reference{ID: "REF-x"}}},
			"unknown type":     {{Reference: core.Reference{ID: "REF-x", Title: "T", Type: "scroll"}}},
			"unknown relation": {{Reference: core.Reference{ID: "REF-x", Title: "T"}, Relations: []core.RelationEntry{{TargetID: "REF-y", Relation: "likes"}}}},
			"duplicate ids":    {records[1], records[1]},
		}
		for name, recs := range bad {
			t.Run(name, func(t *testing.T) {
				svc, store := newService(t)
				_, err := svc.Import(ctx, append([]core.Record{records[0]}, recs...), false)
				assert.ErrorIs(t, err, core.ErrInvalidArgument)
				assert.Empty(t, store.events)
			})
		}
	})
}
