package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedmon/pkg/domain"
	"github.com/umputun/feedmon/pkg/monitor/mocks"
)

// memStore returns a store mock keeping the last saved state
func memStore() *mocks.StoreMock {
	var mu sync.Mutex
	state := domain.NewState()
	return &mocks.StoreMock{
		LoadFunc: func(ctx context.Context) (domain.State, error) {
			mu.Lock()
			defer mu.Unlock()
			return state, nil
		},
		SaveFunc: func(ctx context.Context, s domain.State) error {
			mu.Lock()
			defer mu.Unlock()
			state = s
			return nil
		},
	}
}

func feedsFetcher(feeds map[string]*domain.ParsedFeed) *mocks.FetcherMock {
	return &mocks.FetcherMock{
		ParseFunc: func(ctx context.Context, url string) (*domain.ParsedFeed, error) {
			if f, ok := feeds[url]; ok {
				return f, nil
			}
			return nil, domain.ErrUnreachable
		},
	}
}

func newTestEngine(t *testing.T, fetcher Fetcher, st Store, notifier Notifier) *Engine {
	t.Helper()
	e := New(Params{Fetcher: fetcher, Store: st, Notifier: notifier, Retention: 10, MaxWorkers: 2})
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestEngine_CheckFeeds(t *testing.T) {
	fetcher := feedsFetcher(map[string]*domain.ParsedFeed{
		"https://a.com/rss": {Title: "A", Items: []domain.RawItem{
			{GUID: "a2", Title: "Golang 1.24 released", Link: "https://a.com/2"},
			{GUID: "a1", Title: "Weather", Description: "more golang in description", Link: "https://a.com/1"},
			{GUID: "a0", Title: "Cooking", Link: "https://a.com/0"},
		}},
		"https://b.com/rss": {Title: "B", Items: []domain.RawItem{
			{Title: "Rust news", Link: "https://b.com/rust"},
		}},
	})
	st := memStore()
	notifier := &mocks.NotifierMock{NotifyFunc: func(ctx context.Context, matches []domain.MatchItem, topics map[string]domain.Topic) {}}
	e := newTestEngine(t, fetcher, st, notifier)
	ctx := context.Background()

	fa, err := e.AddFeed(ctx, "A", "https://a.com/rss")
	require.NoError(t, err)
	fb, err := e.AddFeed(ctx, "B", "https://b.com/rss")
	require.NoError(t, err)
	_, err = e.AddFeed(ctx, "C", "https://down.com/rss")
	require.ErrorIs(t, err, domain.ErrInvalidFeed)
	assert.Len(t, e.ListFeeds(), 2)

	golang, err := e.AddTopic(ctx, "golang", false)
	require.NoError(t, err)
	rust, err := e.AddTopic(ctx, "Rust", true)
	require.NoError(t, err)

	inserted, err := e.CheckFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, inserted, 3)

	recent := e.State().RecentMatches
	require.Len(t, recent, 3)
	// within a feed the newest item ends up on top
	idxA2, idxA1 := -1, -1
	for i, m := range recent {
		switch m.ID {
		case domain.MatchID(fa.ID, "a2"):
			idxA2 = i
			assert.Equal(t, []string{golang.ID}, m.MatchedTopics)
		case domain.MatchID(fa.ID, "a1"):
			idxA1 = i
		case domain.MatchID(fb.ID, "https://b.com/rust"):
			assert.Equal(t, []string{rust.ID}, m.MatchedTopics)
		}
	}
	assert.Less(t, idxA2, idxA1)

	require.Len(t, notifier.NotifyCalls(), 1)
	assert.Len(t, notifier.NotifyCalls()[0].Matches, 3)
	assert.Len(t, notifier.NotifyCalls()[0].Topics, 2)

	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved.RecentMatches, 3, "matches persisted")
	assert.NotNil(t, saved.Feeds[fa.ID].LastChecked)

	// second cycle finds nothing new and notifies nobody
	inserted, err = e.CheckFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.Len(t, notifier.NotifyCalls(), 1)
	assert.Len(t, e.State().RecentMatches, 3)
}

func TestEngine_CheckFeedsSkipsFailedFeeds(t *testing.T) {
	feeds := map[string]*domain.ParsedFeed{
		"https://a.com/rss": {Items: []domain.RawItem{{GUID: "1", Title: "golang"}}},
		"https://b.com/rss": {Items: []domain.RawItem{{GUID: "2", Title: "golang too"}}},
	}
	fetcher := feedsFetcher(feeds)
	e := newTestEngine(t, fetcher, memStore(), nil)
	ctx := context.Background()

	_, err := e.AddFeed(ctx, "a", "https://a.com/rss")
	require.NoError(t, err)
	_, err = e.AddFeed(ctx, "b", "https://b.com/rss")
	require.NoError(t, err)
	_, err = e.AddTopic(ctx, "golang", false)
	require.NoError(t, err)

	delete(feeds, "https://a.com/rss") // goes down after registration
	inserted, err := e.CheckFeeds(ctx)
	require.NoError(t, err, "unreachable feed doesn't fail the cycle")
	require.Len(t, inserted, 1)
	assert.Equal(t, "golang too", inserted[0].Title)
}

func TestEngine_CheckFeedsWithoutTopics(t *testing.T) {
	fetcher := feedsFetcher(map[string]*domain.ParsedFeed{"https://a.com/rss": {}})
	e := newTestEngine(t, fetcher, memStore(), nil)
	_, err := e.AddFeed(context.Background(), "a", "https://a.com/rss")
	require.NoError(t, err)
	calls := len(fetcher.ParseCalls())

	inserted, err := e.CheckFeeds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.Len(t, fetcher.ParseCalls(), calls, "no fetches without topics")
}

func TestEngine_SaveFailure(t *testing.T) {
	fetcher := feedsFetcher(map[string]*domain.ParsedFeed{
		"https://a.com/rss": {Items: []domain.RawItem{{GUID: "1", Title: "golang"}}},
	})
	st := memStore()
	notifier := &mocks.NotifierMock{NotifyFunc: func(ctx context.Context, matches []domain.MatchItem, topics map[string]domain.Topic) {}}
	e := newTestEngine(t, fetcher, st, notifier)
	ctx := context.Background()
	_, err := e.AddFeed(ctx, "a", "https://a.com/rss")
	require.NoError(t, err)
	_, err = e.AddTopic(ctx, "golang", false)
	require.NoError(t, err)

	st.SaveFunc = func(ctx context.Context, state domain.State) error { return errors.New("disk full") }

	inserted, err := e.CheckFeeds(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, inserted, 1)
	assert.Len(t, e.State().RecentMatches, 1, "memory stays authoritative")
	assert.Len(t, notifier.NotifyCalls(), 1)

	topic, err := e.AddTopic(ctx, "rust", false)
	require.Error(t, err)
	assert.Equal(t, "rust", topic.Query, "mutation applied despite the save error")
	assert.Len(t, e.ListTopics(), 2)
}

func TestEngine_ArchiveRestore(t *testing.T) {
	fetcher := feedsFetcher(map[string]*domain.ParsedFeed{
		"https://a.com/rss": {Items: []domain.RawItem{{GUID: "1", Title: "golang"}}},
	})
	st := memStore()
	e := newTestEngine(t, fetcher, st, nil)
	ctx := context.Background()
	_, err := e.AddFeed(ctx, "a", "https://a.com/rss")
	require.NoError(t, err)
	_, err = e.AddTopic(ctx, "golang", false)
	require.NoError(t, err)
	inserted, err := e.CheckFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	id := inserted[0].ID

	ok, err := e.ArchiveMatch(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	state := e.State()
	assert.Empty(t, state.RecentMatches)
	require.Len(t, state.ArchivedMatches, 1)
	assert.NotNil(t, state.ArchivedMatches[0].RemovedAt)

	// archived item still served by the feed isn't re-inserted
	inserted, err = e.CheckFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, inserted)

	ok, err = e.ArchiveMatch(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "not recent anymore")

	ok, err = e.RestoreMatch(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	state = e.State()
	require.Len(t, state.RecentMatches, 1)
	assert.Nil(t, state.RecentMatches[0].RemovedAt)
	assert.Empty(t, state.ArchivedMatches)

	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved.RecentMatches, 1)
}

func TestEngine_RemoveFeedKeepsTopics(t *testing.T) {
	fetcher := feedsFetcher(map[string]*domain.ParsedFeed{"https://a.com/rss": {}})
	e := newTestEngine(t, fetcher, memStore(), nil)
	ctx := context.Background()
	f, err := e.AddFeed(ctx, "a", "https://a.com/rss")
	require.NoError(t, err)
	_, err = e.AddTopic(ctx, "golang", false)
	require.NoError(t, err)

	ok, err := e.RemoveFeed(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.RemoveFeed(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, e.ListFeeds())
	assert.Len(t, e.ListTopics(), 1)

	ok, err = e.RemoveTopic(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_InitLoadError(t *testing.T) {
	st := &mocks.StoreMock{LoadFunc: func(ctx context.Context) (domain.State, error) {
		return domain.State{}, errors.New("permission denied")
	}}
	e := New(Params{Store: st})
	err := e.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load state")
}

func TestEngine_InitRestoresState(t *testing.T) {
	st := memStore()
	require.NoError(t, st.Save(context.Background(), domain.State{
		Feeds:         map[string]domain.Feed{"f1": {ID: "f1", URL: "https://a.com/rss"}},
		Topics:        map[string]domain.Topic{"t1": {ID: "t1", Query: "golang"}},
		RecentMatches: []domain.MatchItem{{ID: "f1-01", FeedID: "f1", MatchedTopics: []string{"t1"}}},
	}))
	e := newTestEngine(t, nil, st, nil)
	assert.Len(t, e.ListFeeds(), 1)
	assert.Len(t, e.ListTopics(), 1)
	assert.Len(t, e.State().RecentMatches, 1)
}
