package extractors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsagg/internal/cache"
)

const sitePage = `<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Central bank holds rates">
<meta property="og:image" content="/images/bank.jpg">
</head><body>
<div class="category-detail-content-inner">
<p>The central bank kept its policy rate unchanged on Thursday.</p>
<div class="related-news">Read also: something else</div>
<div class="newsletter">Subscribe now</div>
<script>track()</script>
</div>
</body></html>`

func TestSiteExtractor_UsesRule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitePage)
	}))
	defer srv.Close()

	x := NewSiteExtractor(SiteRule{
		Domain:  "127.0.0.1",
		Content: "div.category-detail-content-inner",
		Remove:  []string{".newsletter"},
	}, NewReadableExtractor(srv.Client(), nil, nil))

	c, err := x.Extract(t.Context(), srv.URL+"/economy/rates-1")
	require.NoError(t, err)
	assert.Equal(t, "Central bank holds rates", c.Title)
	assert.Equal(t, "The central bank kept its policy rate unchanged on Thursday.", c.Text)
	assert.NotContains(t, c.HTML, "Subscribe")
	assert.NotContains(t, c.HTML, "track()")
	assert.Equal(t, []string{srv.URL + "/images/bank.jpg"}, c.Images)
	assert.Equal(t, srv.URL+"/economy/rates-1", c.URL)
}

func TestSiteExtractor_FallsBackToReadable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	x := NewSiteExtractor(SiteRule{Domain: "127.0.0.1", Content: "div.does-not-exist"},
		NewReadableExtractor(srv.Client(), nil, nil))

	c, err := x.Extract(t.Context(), srv.URL+"/story")
	require.NoError(t, err)
	assert.Contains(t, c.Text, "faster builds")
}

func TestSiteExtractor_SkipAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, sitePage)
	}))
	defer srv.Close()

	cc, err := cache.NewContentCache[*Content](100, ContentTTL)
	require.NoError(t, err)
	defer cc.Close()

	x := NewSiteExtractor(SiteRule{
		Domain:  "127.0.0.1",
		Content: "div.category-detail-content-inner",
		Skip:    []string{"/video/", "/galeri/"},
	}, NewReadableExtractor(srv.Client(), cc, nil))

	_, err = x.Extract(t.Context(), srv.URL+"/video/clip-1")
	assert.True(t, errors.Is(err, ErrSkippedPath))
	assert.Zero(t, calls.Load())

	_, err = x.Extract(t.Context(), "file:///etc/passwd")
	assert.ErrorContains(t, err, "invalid article url")

	first, err := x.Extract(t.Context(), srv.URL+"/economy/rates-1")
	require.NoError(t, err)
	second, err := x.Extract(t.Context(), srv.URL+"/economy/rates-1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestReadSiteRules(t *testing.T) {
	rules, err := ReadSiteRules(strings.NewReader(`
sites:
  - domain: ntv.com.tr
    content: div.category-detail-content-inner
    skip: [/galeri/, /video/]
  - domain: example.org
    content: article .body
    remove: [.newsletter]
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"/galeri/", "/video/"}, rules[0].Skip)
	assert.Equal(t, []string{".newsletter"}, rules[1].Remove)

	reg := NewRegistry()
	page := NewReadableExtractor(nil, nil, nil)
	reg.RegisterDefault(page)
	reg.RegisterSites(rules, page)
	assert.IsType(t, &SiteExtractor{}, reg.ForURL("https://www.ntv.com.tr/dunya/x"))
	assert.Same(t, page, reg.ForURL("https://other.test/x"))

	_, err = ReadSiteRules(strings.NewReader("sites:\n  - domain: x.test\n"))
	assert.ErrorContains(t, err, "domain and content are required")

	_, err = ReadSiteRules(strings.NewReader("sites:\n  - domain: x.test\n    content: div\n    selector: p\n"))
	assert.ErrorContains(t, err, "parsing site rules")

	rules, err = ReadSiteRules(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}
