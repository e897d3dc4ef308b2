package fetch

import (
	"bytes"
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"newsagg/internal/article"
)

const DefaultRSSSearchURL = "https://news.google.com/rss/search"

// RSSProvider searches a keyword RSS endpoint (Google News style:
// ?q=<query>). It needs no credential. Date filters and sorting are applied
// locally because feeds have no server-side equivalent.
type RSSProvider struct {
	client    *Client
	searchURL string
	parser    *gofeed.Parser
	max       int
}

// NewRSSProvider creates an RSS provider. An empty searchURL selects Google
// News.
func NewRSSProvider(client *Client, searchURL string) *RSSProvider {
	if searchURL == "" {
		searchURL = DefaultRSSSearchURL
	}
	return &RSSProvider{
		client:    client,
		searchURL: searchURL,
		parser:    gofeed.NewParser(),
		max:       20,
	}
}

func (p *RSSProvider) Name() string { return "rss" }

func (p *RSSProvider) Configured() bool { return true }

func (p *RSSProvider) Search(ctx context.Context, query string, f Filters) ([]article.Article, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	resp, err := p.client.Get(ctx, p.searchURL+"?"+params.Encode(), map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	feed, err := p.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: KindProvider, Status: resp.StatusCode, Details: "malformed feed", Err: err}
	}

	from, to := parseBound(f.From), parseBound(f.To)
	items := make([]*gofeed.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		if pub := published(item); !pub.IsZero() {
			if !from.IsZero() && pub.Before(from) {
				continue
			}
			if !to.IsZero() && pub.After(to) {
				continue
			}
		}
		items = append(items, item)
	}

	if f.SortBy == "publishedAt" {
		slices.SortStableFunc(items, func(a, b *gofeed.Item) int {
			return published(b).Compare(published(a))
		})
	}
	if len(items) > p.max {
		items = items[:p.max]
	}

	out := make([]article.Article, 0, len(items))
	for _, item := range items {
		out = append(out, toArticle(feed, item))
	}
	return out, nil
}

func toArticle(feed *gofeed.Feed, item *gofeed.Item) article.Article {
	a := article.Article{
		ID:          item.GUID,
		Title:       strings.TrimSpace(item.Title),
		Description: htmlToText(item.Description),
		URL:         item.Link,
		Source:      article.Source{Name: feed.Title, URL: feed.Link},
	}
	if item.Author != nil && item.Author.Name != "" {
		a.Source.Name = item.Author.Name
	}
	if item.Image != nil {
		a.Image = item.Image.URL
	}
	if pub := published(item); !pub.IsZero() {
		a.PublishedAt = pub.UTC().Format(time.RFC3339)
	}
	return a
}

func published(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}

// parseBound accepts RFC 3339 timestamps or plain dates.
func parseBound(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t
	}
	return time.Time{}
}

// htmlToText flattens an HTML fragment to whitespace-normalised text.
func htmlToText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
