package extractors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrSkippedPath is returned for pages a site rule excludes, such as galleries
// or video pages.
var ErrSkippedPath = errors.New("page excluded by site rule")

// SiteRule describes where the article body lives on one site.
type SiteRule struct {
	Domain string `yaml:"domain"`
	// Content is the CSS selector of the article container.
	Content string   `yaml:"content"`
	Remove  []string `yaml:"remove"`
	// Skip lists path prefixes that never hold an article.
	Skip []string `yaml:"skip"`
}

// defaultRemove strips page furniture found inside most article containers.
const defaultRemove = "script, style, iframe, noscript, .ad, .advertisement, .social-share, .related-news"

// SiteExtractor extracts content with a SiteRule, falling back to the
// readable pipeline when the selector matches nothing.
type SiteExtractor struct {
	rule SiteRule
	page *ReadableExtractor
}

func NewSiteExtractor(rule SiteRule, page *ReadableExtractor) *SiteExtractor {
	return &SiteExtractor{rule: rule, page: page}
}

func (e *SiteExtractor) Extract(ctx context.Context, pageURL string) (*Content, error) {
	base, err := parseArticleURL(pageURL)
	if err != nil {
		return nil, err
	}
	for _, prefix := range e.rule.Skip {
		if strings.HasPrefix(base.Path, prefix) {
			return nil, fmt.Errorf("%w: %s%s", ErrSkippedPath, base.Host, base.Path)
		}
	}
	if c, ok := e.page.cached(pageURL); ok {
		return c, nil
	}

	body, err := e.page.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	c, err := e.fromRule(body, base)
	if errors.Is(err, ErrNoContent) {
		e.page.log.Debug("Site selector matched nothing",
			zap.String("domain", e.rule.Domain),
			zap.String("selector", e.rule.Content),
			zap.String("url", pageURL),
		)
		c, err = e.page.parse(body, base)
	}
	if err != nil {
		return nil, err
	}
	e.page.store(pageURL, c)
	return c, nil
}

func (e *SiteExtractor) fromRule(body []byte, base *url.URL) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	s := doc.Find(e.rule.Content).First()
	if s.Length() == 0 {
		return nil, ErrNoContent
	}

	s.Find(defaultRemove).Remove()
	for _, sel := range e.rule.Remove {
		s.Find(sel).Remove()
	}
	htmlStr, _ := s.Html()
	htmlStr = sanitizeHTML(htmlStr)
	if htmlStr == "" {
		return nil, ErrNoContent
	}

	images := extractImagesFromMetaTags(body)
	for i, img := range images {
		if ref, err := url.Parse(img); err == nil {
			images[i] = base.ResolveReference(ref).String()
		}
	}
	if len(images) == 0 {
		images = extractImagesFromHTMLWithBase(htmlStr, base)
	}

	title := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return &Content{
		Title:  title,
		HTML:   htmlStr,
		Text:   normalizeSpace(s.Text()),
		Images: images,
	}, nil
}

type siteRulesFile struct {
	Sites []SiteRule `yaml:"sites"`
}

// LoadSiteRules reads site rules from a YAML file.
func LoadSiteRules(path string) ([]SiteRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening site rules: %w", err)
	}
	defer f.Close()
	return ReadSiteRules(f)
}

// ReadSiteRules decodes a document of the form
//
//	sites:
//	  - domain: example.com
//	    content: div.story-body
//	    remove: [.newsletter]
//	    skip: [/video/]
func ReadSiteRules(r io.Reader) ([]SiteRule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc siteRulesFile
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing site rules: %w", err)
	}
	for i, rule := range doc.Sites {
		if strings.TrimSpace(rule.Domain) == "" || strings.TrimSpace(rule.Content) == "" {
			return nil, fmt.Errorf("site rule %d: domain and content are required", i+1)
		}
	}
	return doc.Sites, nil
}

// RegisterSites binds a SiteExtractor for every rule. Pages are downloaded
// and cached through page.
func (r *Registry) RegisterSites(rules []SiteRule, page *ReadableExtractor) {
	for _, rule := range rules {
		r.Register(rule.Domain, NewSiteExtractor(rule, page))
	}
}
