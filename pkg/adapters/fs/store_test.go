package fs_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/refman/pkg/adapters/fs"
	"github.com/aretw0/refman/pkg/core"
	"github.com/aretw0/refman/pkg/git"
)

// setupStore creates a store rooted in a fresh directory.
func setupStore(t *testing.T, opts ...func(*fs.Config)) (*fs.Store, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "library")
	cfg := fs.Config{Path: root}
	for _, opt := range opts {
		opt(&cfg)
	}
	return fs.NewStore(cfg), root
}

func testFactory() *core.EventFactory {
	n := 0
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &core.EventFactory{
		NewID: func(prefix string) string {
			n++
			return fmt.Sprintf("%s-%d", prefix, n)
		},
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
}

func TestEnsureInit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates directory and log", func(t *testing.T) {
		store, root := setupStore(t)

		p, err := store.EnsureInit(ctx)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, fs.LogFileName), p)
		assert.FileExists(t, p)
	})

	t.Run("never truncates", func(t *testing.T) {
		store, root := setupStore(t)
		require.NoError(t, os.MkdirAll(root, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, fs.LogFileName), []byte("keep\n"), 0644))

		_, err := store.EnsureInit(ctx)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, fs.LogFileName))
		require.NoError(t, err)
		assert.Equal(t, "keep\n", string(data))
	})

	t.Run("must exist", func(t *testing.T) {
		store, _ := setupStore(t, func(c *fs.Config) { c.MustExist = true })

		_, err := store.EnsureInit(ctx)
		assert.Error(t, err)
	})

	t.Run("read only creates nothing", func(t *testing.T) {
		store, root := setupStore(t, func(c *fs.Config) { c.ReadOnly = true })

		_, err := store.EnsureInit(ctx)
		require.NoError(t, err)
		assert.NoDirExists(t, root)
	})
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, root := setupStore(t)
	f := testFactory()

	ref, create := f.CreateReference(core.CreateParams{
		Title:       "Attention Is All You Need",
		Authors:     []string{"Vaswani"},
		Type:        core.TypePaper,
		InitialTags: []string{"ML"},
	})
	other, otherCreate := f.CreateReference(core.CreateParams{Title: "Other"})
	update, err := f.UpdateMeta(ref.ID, core.MetaPatch{Source: core.Ptr("arXiv")})
	require.NoError(t, err)

	for _, ev := range []core.Event{
		create,
		otherCreate,
		f.TagAdd(ref.ID, "nlp"),
		update,
		f.Relate(ref.ID, other.ID, core.RelationCites),
	} {
		require.NoError(t, store.Append(ctx, ev))
	}

	t.Run("one line per event", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(root, fs.LogFileName))
		require.NoError(t, err)
		assert.Equal(t, 5, countLines(data))
	})

	t.Run("filters by ref keeping log order", func(t *testing.T) {
		events, err := store.ListEvents(ctx, ref.ID)
		require.NoError(t, err)
		require.Len(t, events, 4)
		assert.Equal(t, core.EventCreate, events[0].Type)
		assert.Equal(t, core.EventTagAdd, events[1].Type)
		assert.Equal(t, core.EventUpdateMeta, events[2].Type)
		assert.Equal(t, core.EventRelate, events[3].Type)
		for _, ev := range events {
			assert.Equal(t, ref.ID, ev.RefID)
		}
	})

	t.Run("projects", func(t *testing.T) {
		state, err := store.ProjectReference(ctx, ref.ID)
		require.NoError(t, err)
		require.NotNil(t, state.Ref)
		assert.Equal(t, "Attention Is All You Need", state.Ref.Title)
		assert.Equal(t, []string{"ml", "nlp"}, state.Ref.Tags)
		assert.Equal(t, "arXiv", state.Ref.Source)
		assert.Equal(t, []core.RelationEntry{{TargetID: other.ID, Relation: core.RelationCites}}, state.Relations)
	})

	t.Run("lists references in first-seen order", func(t *testing.T) {
		ids, err := store.ListReferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{ref.ID, other.ID}, ids)
	})

	t.Run("package helpers read the same log", func(t *testing.T) {
		ids, err := fs.ListReferences(ctx, root)
		require.NoError(t, err)
		assert.Equal(t, []string{ref.ID, other.ID}, ids)

		state, err := fs.ProjectReference(ctx, root, other.ID)
		require.NoError(t, err)
		assert.True(t, state.Found())
	})
}

func TestStore_FreshRoot(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	events, err := store.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	ids, err := store.ListReferences(ctx)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	state, err := store.ProjectReference(ctx, "REF-missing")
	require.NoError(t, err)
	assert.Nil(t, state.Ref)
	assert.Empty(t, state.Relations)
}

func TestStore_MalformedLine(t *testing.T) {
	ctx := context.Background()
	store, root := setupStore(t)
	f := testFactory()

	_, create := f.CreateReference(core.CreateParams{Title: "Good"})
	require.NoError(t, store.Append(ctx, create))

	logFile, err := os.OpenFile(filepath.Join(root, fs.LogFileName), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = logFile.WriteString("\n{not json\n")
	require.NoError(t, err)
	require.NoError(t, logFile.Close())

	_, err = store.ListEvents(ctx, "")
	var perr *core.ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	assert.Equal(t, 3, perr.Line)
}

func TestStore_MalformedPayloadIsSkipped(t *testing.T) {
	ctx := context.Background()
	store, root := setupStore(t)
	f := testFactory()

	ref, create := f.CreateReference(core.CreateParams{Title: "Good"})
	require.NoError(t, store.Append(ctx, create))

	logFile, err := os.OpenFile(filepath.Join(root, fs.LogFileName), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = logFile.WriteString(`{"eventId":"EVT-x","refId":"REF-2","type":"Create","timestamp":"2024-03-01T12:00:05.000Z","payload":{"title":"Bad","authors":"x"}}` + "\n")
	require.NoError(t, err)
	require.NoError(t, logFile.Close())
	require.NoError(t, store.Append(ctx, f.TagAdd(ref.ID, "after")))

	events, err := store.ListEvents(ctx, ref.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	state, err := store.ProjectReference(ctx, ref.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Ref)
	assert.Equal(t, []string{"after"}, state.Ref.Tags)

	bad, err := store.ProjectReference(ctx, "REF-2")
	require.NoError(t, err)
	assert.Nil(t, bad.Ref)

	ids, err := store.ListReferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ref.ID, "REF-2"}, ids)
}

func TestStore_SkipsBlankLines(t *testing.T) {
	ctx := context.Background()
	store, root := setupStore(t)
	f := testFactory()

	_, create := f.CreateReference(core.CreateParams{Title: "Spaced"})
	require.NoError(t, store.Append(ctx, create))

	logFile, err := os.OpenFile(filepath.Join(root, fs.LogFileName), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = logFile.WriteString("\n\n")
	require.NoError(t, err)
	require.NoError(t, logFile.Close())

	events, err := store.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStore_RejectsInvalidEvents(t *testing.T) {
	store, root := setupStore(t)

	err := store.Append(context.Background(), core.Event{EventID: "EVT-1", Type: core.EventTagAdd})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.NoFileExists(t, filepath.Join(root, fs.LogFileName))
}

func TestStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	_, root := setupStore(t)
	f := testFactory()

	writer := fs.NewStore(fs.Config{Path: root})
	_, create := f.CreateReference(core.CreateParams{Title: "Existing"})
	require.NoError(t, writer.Append(ctx, create))

	reader := fs.NewStore(fs.Config{Path: root, ReadOnly: true})
	err := reader.Append(ctx, f.TagAdd(create.RefID, "x"))
	assert.ErrorIs(t, err, core.ErrReadOnly)

	events, err := reader.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStore_CancelledContext(t *testing.T) {
	store, _ := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, create := testFactory().CreateReference(core.CreateParams{Title: "Late"})
	assert.ErrorIs(t, store.Append(ctx, create), context.Canceled)
}

func TestStore_Versioning(t *testing.T) {
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_AUTHOR_NAME", "refman")
	t.Setenv("GIT_AUTHOR_EMAIL", "refman@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "refman")
	t.Setenv("GIT_COMMITTER_EMAIL", "refman@example.com")

	ctx := context.Background()
	store, root := setupStore(t, func(c *fs.Config) { c.Versioning = true })
	require.NoError(t, store.Initialize(ctx))

	ignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(ignore), ".refman/")

	_, create := testFactory().CreateReference(core.CreateParams{Title: "Versioned"})
	require.NoError(t, store.Append(ctx, create))

	client := git.NewClient(root, "", nil)
	out, err := client.Run("log", "--format=%s", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Create "+create.RefID)

	status, err := client.Status()
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestStore_State(t *testing.T) {
	ctx := context.Background()
	store, root := setupStore(t, func(c *fs.Config) { c.IndexCache = true })
	assert.Equal(t, "store", store.ComponentType())

	_, create := testFactory().CreateReference(core.CreateParams{Title: "Observed"})
	require.NoError(t, store.Append(ctx, create))
	_, err := store.ListReferences(ctx)
	require.NoError(t, err)

	state, ok := store.State().(fs.StoreState)
	require.True(t, ok)
	assert.Equal(t, root, state.Path)
	assert.Equal(t, fs.DefaultSystemDir, state.SystemDir)
	assert.Equal(t, 1, state.IndexedRefs)
	assert.NotNil(t, state.LastAppend)
	assert.False(t, state.WatcherActive)
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
