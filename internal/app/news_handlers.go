package app

import (
	"errors"
	"net/http"
	"strings"

	"newsagg/internal/article"
	"newsagg/internal/fetch"
	"newsagg/internal/library"
	"newsagg/internal/news"
)

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	res, err := s.news.ForUser(r.Context(), s.users, userID(r))
	switch {
	case errors.Is(err, news.ErrNoPreferences):
		writeError(w, http.StatusBadRequest, "Please set your news preferences first")
		return
	case errors.Is(err, news.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, news.ErrFetchTimeout):
		writeError(w, http.StatusGatewayTimeout, "Request timeout while fetching news")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"news":   nonNil(res.Articles),
		"source": res.Source,
	})
}

type searchResponse struct {
	Message      string            `json:"message"`
	Source       news.Source       `json:"source"`
	Query        string            `json:"query,omitempty"`
	Keyword      string            `json:"keyword,omitempty"`
	Articles     []article.Article `json:"articles"`
	TotalResults int               `json:"totalResults"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	res, err := s.news.Search(r.Context(), query, fetch.Filters{
		From:   q.Get("from"),
		To:     q.Get("to"),
		SortBy: q.Get("sortBy"),
	})
	if err != nil {
		s.searchError(w, r, err, "Failed to search news from external API", "Request timeout while searching news")
		return
	}

	msg := "Search results fetched successfully"
	if res.Source == news.SourceCache {
		msg += " (from cache)"
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Message:      msg,
		Source:       res.Source,
		Query:        query,
		Articles:     nonNil(res.Articles),
		TotalResults: len(res.Articles),
	})
}

func (s *Server) handleKeyword(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.PathValue("keyword"))
	res, err := s.news.Keyword(r.Context(), keyword)
	if err != nil {
		s.searchError(w, r, err, "Failed to search news", "Request timeout while searching news")
		return
	}

	var msg string
	switch res.Source {
	case news.SourceCache:
		msg = "Search results from cache"
	case news.SourcePlaceholder:
		msg = "Mock search results"
	default:
		msg = "Search results fetched successfully"
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Message:      msg,
		Source:       res.Source,
		Keyword:      keyword,
		Articles:     nonNil(res.Articles),
		TotalResults: len(res.Articles),
	})
}

func (s *Server) searchError(w http.ResponseWriter, r *http.Request, err error, providerMsg, timeoutMsg string) {
	var pf *news.ProviderFailure
	switch {
	case errors.Is(err, news.ErrMissingQuery):
		writeError(w, http.StatusBadRequest, "Search query is required")
	case errors.Is(err, news.ErrUnconfigured):
		writeError(w, http.StatusServiceUnavailable, "News API is not configured. Please set NEWS_API_KEY")
	case errors.As(err, &pf):
		writeErrorDetails(w, http.StatusBadGateway, providerMsg, pf.Details)
	case errors.Is(err, news.ErrFetchTimeout):
		writeError(w, http.StatusGatewayTimeout, timeoutMsg)
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.news.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	already, total, err := s.library.MarkRead(userID(r), id)
	if errors.Is(err, library.ErrMissingID) {
		writeError(w, http.StatusBadRequest, "Article ID is required")
		return
	}
	if already {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "Article already marked as read",
			"articleId": id,
			"totalRead": total,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Article marked as read successfully",
		"articleId": id,
		"totalRead": total,
	})
}

func (s *Server) handleReadList(w http.ResponseWriter, r *http.Request) {
	ids := s.library.ReadList(userID(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Read articles retrieved successfully",
		"readArticles": ids,
		"totalRead":    len(ids),
	})
}

type favoriteRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	Source      *article.Source `json:"source"`
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	fav := library.Favorite{
		ID:          r.PathValue("id"),
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
	}
	if req.Source != nil {
		fav.Source = *req.Source
	}

	saved, already, total, err := s.library.AddFavorite(userID(r), fav)
	switch {
	case errors.Is(err, library.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Article title and URL are required")
		return
	case errors.Is(err, library.ErrMissingID):
		writeError(w, http.StatusBadRequest, "Article ID is required")
		return
	case errors.Is(err, library.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "Article URL must use http or https")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	msg := "Article added to favorites successfully"
	if already {
		msg = "Article already in favorites"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        msg,
		"article":        saved,
		"totalFavorites": total,
	})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs := s.library.Favorites(userID(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Favorite articles retrieved successfully",
		"favorites":      favs,
		"totalFavorites": len(favs),
	})
}

func nonNil(list []article.Article) []article.Article {
	if list == nil {
		return []article.Article{}
	}
	return list
}
