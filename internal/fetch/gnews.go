package fetch

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"newsagg/internal/article"
)

const DefaultGNewsBaseURL = "https://gnews.io/api/v4"

// GNewsProvider searches the GNews JSON API. It requires an API key.
type GNewsProvider struct {
	client  *Client
	baseURL string
	apiKey  string
	max     int
	lang    string
}

// NewGNewsProvider creates a GNews provider. An empty baseURL selects the
// public endpoint.
func NewGNewsProvider(client *Client, baseURL, apiKey string) *GNewsProvider {
	if baseURL == "" {
		baseURL = DefaultGNewsBaseURL
	}
	return &GNewsProvider{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		max:     20,
		lang:    "en",
	}
}

func (p *GNewsProvider) Name() string { return "gnews" }

func (p *GNewsProvider) Configured() bool { return p.apiKey != "" }

type gnewsResponse struct {
	TotalArticles int               `json:"totalArticles"`
	Articles      []article.Article `json:"articles"`
}

func (p *GNewsProvider) Search(ctx context.Context, query string, f Filters) ([]article.Article, error) {
	params := url.Values{}
	params.Set("apikey", p.apiKey)
	params.Set("q", query)
	params.Set("max", strconv.Itoa(p.max))
	params.Set("lang", p.lang)
	if f.From != "" {
		params.Set("from", f.From)
	}
	if f.To != "" {
		params.Set("to", f.To)
	}
	if f.SortBy != "" {
		params.Set("sortby", f.SortBy)
	}

	resp, err := p.client.Get(ctx, p.baseURL+"/search?"+params.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var payload gnewsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Kind: KindProvider, Status: resp.StatusCode, Details: "malformed provider response", Err: err}
	}
	if payload.Articles == nil {
		return []article.Article{}, nil
	}
	return payload.Articles, nil
}
