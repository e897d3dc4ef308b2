package extractors

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsagg/internal/cache"
)

var paragraph = strings.Repeat("The release brings faster builds, a smaller runtime and better tooling for everyone who writes services. ", 4)

var articlePage = fmt.Sprintf(`<!DOCTYPE html>
<html><head>
<title>The Go team ships a new release today</title>
<meta property="og:image" content="https://cdn.test/cover.jpg">
</head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>The Go team ships a new release today</h1>
<p>%s</p>
<p>%s</p>
<p>%s</p>
<img src="/img/chart.png">
</article>
<footer>Copyright</footer>
</body></html>`, paragraph, paragraph, paragraph)

func TestReadableExtractor_ExtractsAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	cc, err := cache.NewContentCache[*Content](100, ContentTTL)
	require.NoError(t, err)
	defer cc.Close()

	x := NewReadableExtractor(srv.Client(), cc, nil)
	pageURL := srv.URL + "/2026/release"

	c, err := x.Extract(t.Context(), pageURL)
	require.NoError(t, err)
	assert.Equal(t, pageURL, c.URL)
	assert.Contains(t, c.Text, "faster builds")
	assert.NotContains(t, c.Text, "Copyright")
	assert.True(t, strings.HasPrefix(c.HTML, "<div"))
	assert.Equal(t, []string{"https://cdn.test/cover.jpg"}, c.Images)

	again, err := x.Extract(t.Context(), pageURL)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReadableExtractor_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	x := NewReadableExtractor(srv.Client(), nil, nil)

	_, err := x.Extract(t.Context(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected HTTP status 404")

	for _, bad := range []string{"not-a-url", "file:///etc/passwd", "gopher://paper.test/1", "ftp://paper.test/story"} {
		_, err = x.Extract(t.Context(), bad)
		assert.ErrorContains(t, err, "invalid article url", bad)
	}
}

func TestFromContainers(t *testing.T) {
	base, _ := url.Parse("https://paper.test/world/story")
	page := []byte(`<html><head><title>Story</title></head><body>
<div class="post-content"><p>Body   text</p><script>track()</script><div class="share">Share</div>
<img src="pics/a.jpg"><img src="data:image/png;base64,xx"><img src="//cdn.test/b.jpg"></div>
</body></html>`)

	c, err := fromContainers(page, base)
	require.NoError(t, err)
	assert.Equal(t, "Story", c.Title)
	assert.Equal(t, "Body text", c.Text)
	assert.NotContains(t, c.HTML, "track()")
	assert.NotContains(t, c.HTML, "Share")
	assert.Equal(t, []string{"https://paper.test/world/pics/a.jpg", "https://cdn.test/b.jpg"}, c.Images)

	_, err = fromContainers([]byte(`<html><body><p>nothing here</p></body></html>`), base)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestRegistry_ForURL(t *testing.T) {
	def := NewReadableExtractor(nil, nil, nil)
	special := NewReadableExtractor(nil, nil, nil)

	r := NewRegistry()
	_, err := r.ForURL("https://a.test/x").Extract(t.Context(), "https://a.test/x")
	assert.ErrorIs(t, err, ErrNoContent)

	r.RegisterDefault(def)
	r.Register("Paper.test", special)

	assert.Same(t, special, r.ForURL("https://paper.test/a"))
	assert.Same(t, special, r.ForURL("https://www.paper.test/a"))
	assert.Same(t, def, r.ForURL("https://other.test/a"))
	assert.Same(t, def, r.ForURL("::bad"))
}

func TestGenerateGUIDFromURL(t *testing.T) {
	a := GenerateGUIDFromURL("https://a.test/1")
	assert.Len(t, a, 32)
	assert.Equal(t, a, GenerateGUIDFromURL("https://a.test/1"))
	assert.NotEqual(t, a, GenerateGUIDFromURL("https://a.test/2"))
}
