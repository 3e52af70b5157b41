package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedmon/pkg/domain"
)

type stateStore interface {
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, state domain.State) error
}

func sampleState() domain.State {
	checked := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	removed := time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	return domain.State{
		Feeds: map[string]domain.Feed{
			"f1": {ID: "f1", URL: "https://example.com/rss", Name: "Example", LastChecked: &checked, AddedAt: added},
			"f2": {ID: "f2", URL: "https://other.com/atom", Name: "Other", AddedAt: added.Add(time.Hour)},
		},
		Topics: map[string]domain.Topic{
			"t1": {ID: "t1", Query: "golang", NotifyExtension: true, AddedAt: added},
			"t2": {ID: "t2", Query: "Rust", CaseSensitive: true, NotifyEmail: true, AddedAt: added},
		},
		RecentMatches: []domain.MatchItem{
			{ID: "f1-0002", FeedID: "f1", Title: "newer", Link: "https://example.com/2", PubDate: "Mon, 02 Jan 2006", MatchedTopics: []string{"t1", "t2"}},
			{ID: "f1-0001", FeedID: "f1", Title: "older", Description: "golang news", Link: "https://example.com/1", MatchedTopics: []string{"t1"}},
		},
		ArchivedMatches: []domain.MatchItem{
			{ID: "f2-0001", FeedID: "f2", Title: "archived", MatchedTopics: []string{"t2"}, Archived: true, RemovedAt: &removed},
		},
		Evicted: []string{"f1-old1", "f1-old2"},
	}
}

func testStores(t *testing.T) map[string]stateStore {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := NewSQLite(context.Background(), Config{DSN: filepath.Join(dir, "state.db")})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, sqlite.Close()) })
	return map[string]stateStore{
		"sqlite": sqlite,
		"json":   NewJSONFile(filepath.Join(dir, "state.json")),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty.Feeds)
			assert.Empty(t, empty.RecentMatches)

			want := sampleState()
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}

			// save replaces everything
			want.RecentMatches = want.RecentMatches[:1]
			delete(want.Feeds, "f2")
			want.Evicted = nil
			require.NoError(t, store.Save(ctx, want))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("state mismatch after replace (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSONFile_Recovery(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file saved as empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "state.json")
		store := NewJSONFile(path)
		state, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, state.Topics)
		assert.FileExists(t, path)
	})

	t.Run("corrupt file replaced", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"feeds": {broken`), 0o600))

		store := NewJSONFile(path)
		state, err := store.Load(ctx)
		require.NoError(t, err)
		assert.NotNil(t, state.Feeds)
		assert.Empty(t, state.Feeds)
		assert.FileExists(t, path+".corrupt")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"recentMatches": []`)
	})

	t.Run("persisted layout", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		store := NewJSONFile(path)
		require.NoError(t, store.Save(ctx, sampleState()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		for _, key := range []string{`"feeds"`, `"topics"`, `"recentMatches"`, `"archivedMatches"`, `"matchedTopics"`, `"caseSensitive"`} {
			assert.Contains(t, string(data), key)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		store := NewJSONFile(filepath.Join(t.TempDir(), "state.json"))
		require.Error(t, store.Save(cctx, domain.NewState()))
	})
}

func TestSQLite_Recovery(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(ctx, Config{DSN: filepath.Join(t.TempDir(), "state.db")})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, sampleState()))
	_, err = store.db.ExecContext(ctx, "UPDATE matches SET matched_topics = 'not json' WHERE id = 'f1-0001'")
	require.NoError(t, err)

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Feeds, "unreadable state replaced with empty one")
	assert.Empty(t, state.RecentMatches)

	var count int
	require.NoError(t, store.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM matches"))
	assert.Zero(t, count, "empty state saved")
}

func TestSQLite_LoadQueryError(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(ctx, Config{DSN: filepath.Join(t.TempDir(), "state.db")})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, sampleState()))
	// a column the loader doesn't know about fails the query scan
	_, err = store.db.ExecContext(ctx, "ALTER TABLE topics ADD COLUMN extra TEXT")
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errCorrupt)

	var feeds, matches int
	require.NoError(t, store.db.GetContext(ctx, &feeds, "SELECT COUNT(*) FROM feeds"))
	require.NoError(t, store.db.GetContext(ctx, &matches, "SELECT COUNT(*) FROM matches"))
	assert.Equal(t, 2, feeds, "stored feeds kept")
	assert.Equal(t, 3, matches, "stored matches kept")
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{assert.AnError, false},
		{&permanentError{err: os.ErrNotExist}, false},
		{errString("SQLITE_LOCKED: table locked"), true},
		{errString("SQLITE_BUSY: database is busy"), true},
		{errString("database is locked"), true},
		{errString("database table is locked"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isBusy(tt.err))
	}

	// permanent error keeps its cause
	pe := &permanentError{err: os.ErrNotExist}
	require.ErrorIs(t, pe, os.ErrNotExist)
}

type errString string

func (e errString) Error() string { return string(e) }
