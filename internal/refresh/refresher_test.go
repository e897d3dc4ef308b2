package refresh

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"newsagg/internal/article"
	"newsagg/internal/cache"
	"newsagg/internal/fetch"
	"newsagg/internal/users"
)

type staticUsers []users.Snapshot

func (s staticUsers) WithPreferences() []users.Snapshot { return s }

type fakeFetcher struct {
	mu         sync.Mutex
	configured bool
	failFor    string
	block      chan struct{}
	entered    chan struct{}
	calls      [][]string
}

func (f *fakeFetcher) Configured() bool { return f.configured }

func (f *fakeFetcher) Fetch(_ context.Context, terms []string, _ *fetch.Filters) ([]article.Article, error) {
	f.mu.Lock()
	f.calls = append(f.calls, terms)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.failFor != "" && slices.Contains(terms, f.failFor) {
		return nil, &fetch.FetchError{Kind: fetch.KindProvider, Details: "boom"}
	}
	return []article.Article{{Title: strings.Join(terms, "+"), URL: "https://a.test"}}, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fastOpts() Options {
	return Options{Interval: time.Hour, StartupDelay: time.Millisecond, Pacing: time.Millisecond}
}

func TestRunCycle_RefreshesUsersWithPreferences(t *testing.T) {
	store := cache.NewStore()
	f := &fakeFetcher{configured: true}
	src := staticUsers{
		{UserID: "u1", Preferences: []string{"technology", "science"}},
		{UserID: "u2", Preferences: []string{"sports"}},
		{UserID: "u3", Preferences: nil},
	}
	r := New(store, f, src, fastOpts())

	stats := r.RunCycle(t.Context())
	assert.Equal(t, 2, stats.Refreshed)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, store.Len(), "the user without preferences is untouched")

	for _, prefs := range [][]string{{"science", "technology"}, {"sports"}} {
		e, ok := store.Lookup(cache.NewsKey(prefs), time.Minute)
		require.True(t, ok, prefs)
		assert.Len(t, e.Articles, 1)
	}

	last, cycles := r.LastCycle()
	assert.Equal(t, 1, cycles)
	assert.Equal(t, 2, last.Refreshed)
	assert.True(t, last.Configured)
}

func TestRunCycle_SkipsEntriesYoungerThanInterval(t *testing.T) {
	store := cache.NewStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	f := &fakeFetcher{configured: true}
	src := staticUsers{
		{UserID: "u1", Preferences: []string{"go"}},
		{UserID: "u2", Preferences: []string{"rust"}},
	}
	opts := fastOpts()
	opts.Interval = 10 * time.Minute
	r := New(store, f, src, opts)

	store.Put(cache.NewsKey([]string{"go"}), cache.Entry{CachedAt: now.Add(-9 * time.Minute)})
	store.Put(cache.NewsKey([]string{"rust"}), cache.Entry{CachedAt: now.Add(-10 * time.Minute)})

	stats := r.RunCycle(t.Context())
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Refreshed)
	require.Equal(t, 1, f.Calls())
	assert.Equal(t, []string{"rust"}, f.calls[0])
}

func TestRunCycle_SharedPreferencesFetchedOnce(t *testing.T) {
	store := cache.NewStore()
	f := &fakeFetcher{configured: true}
	src := staticUsers{
		{UserID: "u1", Preferences: []string{"a", "b"}},
		{UserID: "u2", Preferences: []string{"b", "a"}},
	}
	stats := New(store, f, src, fastOpts()).RunCycle(t.Context())
	assert.Equal(t, 1, stats.Refreshed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestRunCycle_FailureIsIsolated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := cache.NewStore()
	f := &fakeFetcher{configured: true, failFor: "bad"}
	src := staticUsers{
		{UserID: "u1", Preferences: []string{"bad"}},
		{UserID: "u2", Preferences: []string{"good"}},
	}
	opts := fastOpts()
	opts.Logger = zap.New(core)

	stats := New(store, f, src, opts).RunCycle(t.Context())
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Refreshed)
	assert.Equal(t, 1, store.Len())
	_, ok := store.Get(cache.NewsKey([]string{"bad"}))
	assert.False(t, ok, "failed fetches write nothing")

	entries := logs.FilterMessage("Refresh failed for user").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
}

func TestRunCycle_UnconfiguredIsNoop(t *testing.T) {
	store := cache.NewStore()
	f := &fakeFetcher{configured: false}
	r := New(store, f, staticUsers{{UserID: "u1", Preferences: []string{"go"}}}, fastOpts())

	stats := r.RunCycle(t.Context())
	assert.False(t, stats.Configured)
	assert.Zero(t, f.Calls())
	assert.Zero(t, store.Len())
}

func TestRunCycle_PacesUpstreamCalls(t *testing.T) {
	store := cache.NewStore()
	f := &fakeFetcher{configured: true}
	src := staticUsers{
		{UserID: "u1", Preferences: []string{"a"}},
		{UserID: "u2", Preferences: []string{"b"}},
		{UserID: "u3", Preferences: []string{"c"}},
	}
	opts := fastOpts()
	opts.Pacing = 40 * time.Millisecond

	start := time.Now()
	stats := New(store, f, src, opts).RunCycle(t.Context())
	assert.Equal(t, 3, stats.Refreshed)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	store := cache.NewStore()
	f := &fakeFetcher{configured: true}
	r := New(store, f, staticUsers{{UserID: "u1", Preferences: []string{"go"}}}, fastOpts())

	require.True(t, r.Start())
	assert.False(t, r.Start(), "second start is a no-op")
	assert.True(t, r.Running())

	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Wait()
	assert.False(t, r.Running())
	assert.Equal(t, 1, f.Calls(), "one loop, one startup cycle")

	r.Stop()

	store.Clear()
	require.True(t, r.Start())
	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Wait()
	_, cycles := r.LastCycle()
	assert.Equal(t, 2, cycles)
}

func TestStopDoesNotInterruptInflightCycle(t *testing.T) {
	store := cache.NewStore()
	f := &fakeFetcher{
		configured: true,
		block:      make(chan struct{}),
		entered:    make(chan struct{}, 1),
	}
	r := New(store, f, staticUsers{{UserID: "u1", Preferences: []string{"go"}}}, fastOpts())

	require.True(t, r.Start())
	select {
	case <-f.entered:
	case <-time.After(time.Second):
		t.Fatal("cycle never started")
	}

	r.Stop()
	close(f.block)
	r.Wait()

	assert.Equal(t, 1, store.Len(), "the in-flight fetch completed and was stored")
}

func TestWaitWithoutStart(t *testing.T) {
	r := New(cache.NewStore(), &fakeFetcher{}, staticUsers{}, Options{})
	r.Wait()
	r.Stop()
	assert.False(t, r.Running())
}
