// Package library keeps each user's read list and favorite articles in
// memory.
package library

import (
	"errors"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"newsagg/internal/article"
)

var (
	ErrMissingID     = errors.New("article ID is required")
	ErrMissingFields = errors.New("article title and URL are required")
	ErrInvalidURL    = errors.New("article URL must be an absolute http or https URL")
)

// Favorite is a saved article.
type Favorite struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	Source      article.Source `json:"source"`
	SavedAt     time.Time      `json:"savedAt"`
}

// Library is safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	read      map[string][]string
	favorites map[string][]Favorite
	nowFunc   func() time.Time
}

func New() *Library {
	return &Library{
		read:      make(map[string][]string),
		favorites: make(map[string][]Favorite),
		nowFunc:   time.Now,
	}
}

// MarkRead records articleID as read by userID. It reports whether the
// article was already on the list and the list's length afterwards.
func (l *Library) MarkRead(userID, articleID string) (already bool, total int, err error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return false, 0, ErrMissingID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.read[userID]
	if slices.Contains(list, articleID) {
		return true, len(list), nil
	}
	l.read[userID] = append(list, articleID)
	return false, len(list) + 1, nil
}

// ReadList returns the ids userID has read, oldest first.
func (l *Library) ReadList(userID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := slices.Clone(l.read[userID])
	if out == nil {
		out = []string{}
	}
	return out
}

// AddFavorite saves f for userID. When an entry with the same id exists it is
// returned unchanged with already set.
func (l *Library) AddFavorite(userID string, f Favorite) (saved Favorite, already bool, total int, err error) {
	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		return Favorite{}, false, 0, ErrMissingID
	}
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.URL) == "" {
		return Favorite{}, false, 0, ErrMissingFields
	}
	if u, err := url.Parse(strings.TrimSpace(f.URL)); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Favorite{}, false, 0, ErrInvalidURL
	}
	if f.Source.Name == "" {
		f.Source.Name = "Unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.favorites[userID]
	if i := slices.IndexFunc(list, func(e Favorite) bool { return e.ID == f.ID }); i >= 0 {
		return list[i], true, len(list), nil
	}
	f.SavedAt = l.nowFunc().UTC()
	l.favorites[userID] = append(list, f)
	return f, false, len(list) + 1, nil
}

// Favorites returns userID's saved articles, oldest first.
func (l *Library) Favorites(userID string) []Favorite {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := slices.Clone(l.favorites[userID])
	if out == nil {
		out = []Favorite{}
	}
	return out
}

// Favorite looks up one saved article.
func (l *Library) Favorite(userID, id string) (Favorite, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, f := range l.favorites[userID] {
		if f.ID == id {
			return f, true
		}
	}
	return Favorite{}, false
}
