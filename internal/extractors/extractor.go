// Package extractors turns article pages into readable content.
package extractors

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNoContent is returned when a page has no recognisable article body.
var ErrNoContent = errors.New("no main article content found")

// Content is the readable form of an article page.
type Content struct {
	URL    string   `json:"url"`
	Title  string   `json:"title,omitempty"`
	HTML   string   `json:"html"`
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

// Extractor extracts the main content of a page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*Content, error)
}

// Registry holds site specific extractors and a default fallback.
type Registry struct {
	byDomain         map[string]Extractor
	defaultExtractor Extractor
}

func NewRegistry() *Registry {
	return &Registry{byDomain: make(map[string]Extractor)}
}

func (r *Registry) RegisterDefault(e Extractor) {
	r.defaultExtractor = e
}

// Register binds e to domain and its subdomains.
func (r *Registry) Register(domain string, e Extractor) {
	r.byDomain[strings.ToLower(domain)] = e
}

// ForURL returns the best extractor for the URL.
func (r *Registry) ForURL(pageURL string) Extractor {
	if u, err := url.Parse(pageURL); err == nil {
		host := strings.ToLower(u.Hostname())
		for host != "" {
			if e, ok := r.byDomain[host]; ok {
				return e
			}
			_, rest, found := strings.Cut(host, ".")
			if !found {
				break
			}
			host = rest
		}
	}
	if r.defaultExtractor != nil {
		return r.defaultExtractor
	}
	return unsupported{}
}

// unsupported is a last-resort extractor.
type unsupported struct{}

func (unsupported) Extract(context.Context, string) (*Content, error) {
	return nil, ErrNoContent
}
