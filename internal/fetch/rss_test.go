package fetch

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Wire</title>
  <link>https://wire.test</link>
  <item>
    <title>Older story</title>
    <link>https://wire.test/older</link>
    <guid>older-1</guid>
    <description><![CDATA[<p>Old <b>news</b></p>]]></description>
    <pubDate>Mon, 05 Jan 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title> Newer story </title>
    <link>https://wire.test/newer</link>
    <guid>newer-1</guid>
    <description>plain   text</description>
    <pubDate>Thu, 08 Jan 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No link</title>
    <pubDate>Thu, 08 Jan 2026 11:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func rssServer(t *testing.T) (*RSSProvider, *string) {
	var query string
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	})
	return NewRSSProvider(testClient(), srv.URL), &query
}

func TestRSSProvider_Search(t *testing.T) {
	p, q := rssServer(t)
	assert.True(t, p.Configured())

	articles, err := p.Search(t.Context(), "go OR rust", Filters{})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "go OR rust", *q)

	first := articles[0]
	assert.Equal(t, "older-1", first.ID)
	assert.Equal(t, "Old news", first.Description)
	assert.Equal(t, "Wire", first.Source.Name)
	assert.Equal(t, "2026-01-05T10:00:00Z", first.PublishedAt)

	assert.Equal(t, "Newer story", articles[1].Title)
	assert.Equal(t, "plain text", articles[1].Description)
}

func TestRSSProvider_SortAndDateFilter(t *testing.T) {
	p, _ := rssServer(t)

	sorted, err := p.Search(t.Context(), "x", Filters{SortBy: "publishedAt"})
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, "newer-1", sorted[0].ID)

	recent, err := p.Search(t.Context(), "x", Filters{From: "2026-01-07"})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "newer-1", recent[0].ID)

	early, err := p.Search(t.Context(), "x", Filters{To: "2026-01-06T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, early, 1)
	assert.Equal(t, "older-1", early[0].ID)
}

func TestRSSProvider_MalformedFeed(t *testing.T) {
	srv, _ := gnewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "definitely not a feed")
	})
	p := NewRSSProvider(testClient(), srv.URL)

	_, err := p.Search(t.Context(), "x", Filters{})
	assert.Equal(t, KindProvider, KindOf(err))
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "a b", htmlToText("  a \n b "))
	assert.Equal(t, "Hello world", htmlToText(`<div>Hello <a href="#">world</a></div>`))
}
