// Package cache holds the time-windowed response cache and a bounded cache
// for derived article content.
package cache

import (
	"sync"
	"time"

	"newsagg/internal/article"
)

// Store is the in-memory response cache shared by request handlers and the
// background refresher. Entries never expire on their own; callers decide
// freshness with a TTL of their choosing.
type Store struct {
	mu    sync.RWMutex
	items map[string]Entry

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// Entry stores a fetched article set and the time it was written.
type Entry struct {
	Articles []article.Article
	CachedAt time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		items:   make(map[string]Entry),
		nowFunc: time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.nowFunc = now
	s.mu.Unlock()
}

// Now returns the store's notion of the current time.
func (s *Store) Now() time.Time {
	s.mu.RLock()
	now := s.nowFunc
	s.mu.RUnlock()
	if now == nil {
		return time.Now()
	}
	return now()
}

// Get returns the entry for key regardless of its age.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	e.Articles = article.Clone(e.Articles)
	return e, true
}

// Put overwrites key unconditionally.
func (s *Store) Put(key string, e Entry) {
	e.Articles = article.Clone(e.Articles)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
}

// Set stores articles under key stamped with the current time.
func (s *Store) Set(key string, articles []article.Article) {
	s.Put(key, Entry{Articles: articles, CachedAt: s.Now()})
}

// Lookup returns the entry for key only if it is younger than ttl.
func (s *Store) Lookup(key string, ttl time.Duration) (Entry, bool) {
	e, ok := s.Get(key)
	if !ok || !s.IsFresh(e, ttl) {
		return Entry{}, false
	}
	return e, true
}

// IsFresh reports whether now - e.CachedAt < ttl.
func (s *Store) IsFresh(e Entry, ttl time.Duration) bool {
	return s.Now().Sub(e.CachedAt) < ttl
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	clear(s.items)
	s.mu.Unlock()
}

// Len returns current number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.items)
	s.mu.RUnlock()
	return n
}
