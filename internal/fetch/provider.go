package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"newsagg/internal/article"
)

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 8 << 20

// Filters are optional search constraints passed through to the provider.
type Filters struct {
	From   string
	To     string
	SortBy string
}

// Provider is an upstream news source. Search returns raw errors; the
// Fetcher classifies them.
type Provider interface {
	Name() string
	Configured() bool
	Search(ctx context.Context, query string, f Filters) ([]article.Article, error)
}

// readBody returns the (capped) response body, or a provider error carrying
// the upstream reason when the status is not 2xx.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:    KindProvider,
			Status:  resp.StatusCode,
			Details: errorDetails(body, resp.Status),
		}
	}
	return body, nil
}

// errorDetails extracts a readable reason from a provider error body. It
// understands {"message": "..."} and {"errors": [...] | {...} | "..."}.
func errorDetails(body []byte, fallback string) string {
	if !gjson.ValidBytes(body) {
		return fallback
	}
	if m := gjson.GetBytes(body, "message"); m.Exists() && m.String() != "" {
		return m.String()
	}
	errs := gjson.GetBytes(body, "errors")
	switch {
	case errs.IsArray(), errs.IsObject():
		var parts []string
		errs.ForEach(func(_, v gjson.Result) bool {
			if s := v.String(); s != "" {
				parts = append(parts, s)
			}
			return true
		})
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	case errs.Exists() && errs.String() != "":
		return errs.String()
	}
	return fallback
}
