// Package article holds the provider-agnostic article model shared by the
// fetcher, the response cache and the HTTP layer.
package article

import "fmt"

// Source names the publisher of an article.
type Source struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Article is a pass-through copy of what the upstream provider returned.
type Article struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
	URL         string `json:"url"`
	Image       string `json:"image,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Source      Source `json:"source"`
}

// Clone returns a copy of list that shares no backing array with it.
func Clone(list []Article) []Article {
	if list == nil {
		return nil
	}
	out := make([]Article, len(list))
	copy(out, list)
	return out
}

// Placeholder is the fixed set served when the personalized feed has to
// degrade because the provider is unavailable or unconfigured.
func Placeholder() []Article {
	return []Article{
		{
			Title:       "Mock News Article",
			Description: "This is a mock news article",
			URL:         "https://example.com",
			Source:      Source{Name: "Mock Source"},
		},
	}
}

// KeywordPlaceholder is the mock result for a keyword search without a
// configured provider.
func KeywordPlaceholder(keyword string) []Article {
	return []Article{
		{
			ID:          "mock-1",
			Title:       fmt.Sprintf("Mock article about %s", keyword),
			Description: fmt.Sprintf("This is a mock article related to %s", keyword),
			URL:         "https://example.com",
			Source:      Source{Name: "Mock Source"},
		},
	}
}
