package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"newsagg/internal/cache"
)

const (
	// ContentTTL is how long an extracted page stays cached.
	ContentTTL = 2 * time.Hour

	maxPageSize      = 8 << 20
	defaultUserAgent = "Mozilla/5.0 (compatible; NewsAggBot/1.0)"
)

// fallbackSelectors are tried in order when readability finds nothing.
var fallbackSelectors = []string{
	"article",
	"main",
	".article-body",
	".post-content",
	".entry-content",
	".content",
	".story-body",
}

// ReadableExtractor uses go-readability primarily and goquery as a fallback.
type ReadableExtractor struct {
	httpClient *http.Client
	userAgent  string
	cache      *cache.ContentCache[*Content]
	log        *zap.Logger
}

// NewReadableExtractor constructs a ReadableExtractor. A nil client gets a
// plain client with a 15s timeout; a nil cache disables caching.
func NewReadableExtractor(client *http.Client, cc *cache.ContentCache[*Content], log *zap.Logger) *ReadableExtractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReadableExtractor{
		httpClient: client,
		userAgent:  defaultUserAgent,
		cache:      cc,
		log:        log,
	}
}

// parseArticleURL accepts absolute http and https URLs only.
func parseArticleURL(pageURL string) (*url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid article url %q", pageURL)
	}
	return base, nil
}

// Extract downloads pageURL and returns its readable content. Results are
// cached by URL.
func (d *ReadableExtractor) Extract(ctx context.Context, pageURL string) (*Content, error) {
	if c, ok := d.cached(pageURL); ok {
		return c, nil
	}

	base, err := parseArticleURL(pageURL)
	if err != nil {
		return nil, err
	}

	body, err := d.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	c, err := d.parse(body, base)
	if err != nil {
		return nil, err
	}
	d.store(pageURL, c)
	return c, nil
}

// parse runs readability over body and falls back to well-known article
// containers.
func (d *ReadableExtractor) parse(body []byte, base *url.URL) (*Content, error) {
	c, err := d.fromReadability(body, base)
	if err != nil {
		d.log.Debug("Readability failed, trying fallback selectors",
			zap.Stringer("url", base), zap.Error(err))
		return fromContainers(body, base)
	}
	return c, nil
}

func (d *ReadableExtractor) cached(pageURL string) (*Content, bool) {
	if d.cache == nil {
		return nil, false
	}
	return d.cache.Get(pageURL)
}

func (d *ReadableExtractor) store(pageURL string, c *Content) {
	c.URL = pageURL
	if d.cache != nil {
		d.cache.Set(pageURL, c)
	}
}

func (d *ReadableExtractor) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("reading article: %w", err)
	}
	return body, nil
}

func (d *ReadableExtractor) fromReadability(body []byte, base *url.URL) (*Content, error) {
	doc, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, ErrNoContent
	}

	images := extractImagesFromMetaTags(body)
	if len(images) == 0 && doc.Image != "" {
		images = []string{doc.Image}
	}
	if len(images) == 0 {
		images = extractImagesFromHTMLWithBase(doc.Content, base)
	}
	return &Content{
		Title:  strings.TrimSpace(doc.Title),
		HTML:   sanitizeHTML(doc.Content),
		Text:   normalizeSpace(doc.TextContent),
		Images: images,
	}, nil
}

// fromContainers looks for the main article container directly.
func fromContainers(body []byte, base *url.URL) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for _, sel := range fallbackSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		s.Find("script, iframe, style, .ad, .advertisement, .promo, .related, .share").Remove()
		htmlStr, _ := s.Html()
		htmlStr = sanitizeHTML(htmlStr)
		if htmlStr == "" {
			continue
		}
		imgs := extractImagesFromMetaTags(body)
		if len(imgs) == 0 {
			imgs = extractImagesFromHTMLWithBase(htmlStr, base)
		}
		return &Content{
			Title:  strings.TrimSpace(doc.Find("title").First().Text()),
			HTML:   htmlStr,
			Text:   normalizeSpace(s.Text()),
			Images: imgs,
		}, nil
	}

	return nil, ErrNoContent
}

// sanitizeHTML ensures consistent wrapping.
func sanitizeHTML(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	if !strings.HasPrefix(html, "<div") {
		html = fmt.Sprintf(`<div class="newsagg-article">%s</div>`, html)
	}
	return html
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractImagesFromMetaTags reads Open Graph, Twitter Card and article:image
// meta tags.
func extractImagesFromMetaTags(page []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var images []string
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
		`meta[property="article:image"]`,
	} {
		if v, ok := doc.Find(sel).Attr("content"); ok && v != "" && !slices.Contains(images, v) {
			images = append(images, v)
		}
	}
	return images
}

// extractImagesFromHTMLWithBase collects <img src> values resolved against
// base. Data URLs are skipped.
func extractImagesFromHTMLWithBase(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var images []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := ref.String()
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}
		if !slices.Contains(images, abs) {
			images = append(images, abs)
		}
	})
	return images
}
