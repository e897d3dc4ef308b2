package app

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"newsagg/internal/library"
	"newsagg/internal/users"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 50
	summaryLength    = 300

	// Full text is extracted for the newest items only, within one budget.
	maxFulltextItems = 10
	fulltextBudget   = 20 * time.Second
)

// handleFavoritesFeed exports the caller's favorites as RSS, Atom or JSON
// Feed. With fulltext=true each item carries the extracted article body.
func (s *Server) handleFavoritesFeed(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(userID(r))
	if err != nil {
		s.userError(w, r, err)
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "rss"
	}
	limit := defaultFeedLimit
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= maxFeedLimit {
		limit = l
	}
	fulltext, _ := strconv.ParseBool(q.Get("fulltext"))

	favs := s.library.Favorites(u.ID)
	slices.Reverse(favs)
	if len(favs) > limit {
		favs = favs[:limit]
	}

	feed := s.buildFavoritesFeed(r.Context(), u, favs, baseURL(r), fulltext)
	body, contentType, err := renderFeed(feed, format)
	if err != nil {
		if errors.Is(err, errUnknownFormat) {
			writeError(w, http.StatusBadRequest, "Unsupported feed format. Use rss, atom or json")
			return
		}
		s.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// buildFavoritesFeed turns saved articles into a feed, newest first.
func (s *Server) buildFavoritesFeed(ctx context.Context, u users.User, favs []library.Favorite, base string, fulltext bool) *feeds.Feed {
	out := &feeds.Feed{
		Title:       fmt.Sprintf("%s's favorites", u.Name),
		Link:        &feeds.Link{Href: base + "/news/favorites"},
		Description: "Articles saved on News Aggregator",
		Author:      &feeds.Author{Name: u.Name, Email: u.Email},
		Created:     time.Now(),
		Id:          base + "/users/" + u.ID + "/favorites",
	}

	if fulltext {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fulltextBudget)
		defer cancel()
	}

	for i, f := range favs {
		item := &feeds.Item{
			Id:          f.ID,
			Title:       f.Title,
			Link:        &feeds.Link{Href: f.URL},
			Description: summarizeHTML(f.Description, summaryLength),
			Author:      &feeds.Author{Name: f.Source.Name},
			Created:     f.SavedAt,
		}
		if f.Source.URL != "" {
			item.Source = &feeds.Link{Href: f.Source.URL}
		}
		if fulltext && i < maxFulltextItems && ctx.Err() == nil {
			s.attachContent(ctx, item, f.URL)
		}
		if out.Updated.Before(f.SavedAt) {
			out.Updated = f.SavedAt
		}
		out.Items = append(out.Items, item)
	}

	s.log.Debug("Favorites feed built", zap.String("user_id", u.ID), zap.Int("items", len(out.Items)))
	return out
}

// attachContent fills item with the extracted article. Failures leave the
// summary in place.
func (s *Server) attachContent(ctx context.Context, item *feeds.Item, articleURL string) {
	c, err := s.extractors.ForURL(articleURL).Extract(ctx, articleURL)
	if err != nil {
		s.log.Warn("Skipping full text", zap.String("url", articleURL), zap.Error(err))
		return
	}
	item.Content = c.HTML
	if item.Description == "" {
		item.Description = summarizeHTML(c.Text, summaryLength)
	}
	if len(c.Images) > 0 {
		item.Enclosure = &feeds.Enclosure{
			Url:    c.Images[0],
			Type:   imageType(c.Images[0]),
			Length: "0",
		}
	}
}

var errUnknownFormat = errors.New("unknown feed format")

func renderFeed(f *feeds.Feed, format string) (body, contentType string, err error) {
	switch format {
	case "rss":
		body, err = f.ToRss()
		contentType = "application/rss+xml; charset=utf-8"
	case "atom":
		body, err = f.ToAtom()
		contentType = "application/atom+xml; charset=utf-8"
	case "json":
		body, err = f.ToJSON()
		contentType = "application/feed+json; charset=utf-8"
	default:
		err = errUnknownFormat
	}
	return body, contentType, err
}

// summarizeHTML trims HTML content to a short text summary.
func summarizeHTML(html string, limit int) string {
	plain := stripTags(html)
	runes := []rune(plain)
	if len(runes) > limit {
		return strings.TrimSpace(string(runes[:limit])) + "..."
	}
	return plain
}

// stripTags returns the whitespace-normalised text of an HTML fragment.
func stripTags(input string) string {
	if !strings.ContainsRune(input, '<') {
		return strings.Join(strings.Fields(input), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return input
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func imageType(src string) string {
	u, err := url.Parse(src)
	if err == nil {
		if t := mime.TypeByExtension(path.Ext(u.Path)); strings.HasPrefix(t, "image/") {
			return t
		}
	}
	return "image/jpeg"
}

// baseURL reconstructs the externally visible origin of r.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleFavoriteContent(w http.ResponseWriter, r *http.Request) {
	fav, ok := s.library.Favorite(userID(r), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Favorite not found")
		return
	}
	c, err := s.extractors.ForURL(fav.URL).Extract(r.Context(), fav.URL)
	if err != nil {
		s.log.Warn("Content extraction failed", zap.String("url", fav.URL), zap.Error(err))
		writeErrorDetails(w, http.StatusBadGateway, "Failed to extract article content", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      fav.ID,
		"title":   fav.Title,
		"url":     fav.URL,
		"content": c,
	})
}
