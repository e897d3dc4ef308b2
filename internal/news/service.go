// Package news implements the foreground cache policies: the personalized
// feed, query search and keyword search. Each consults the shared cache.Store
// first and only calls the upstream fetcher on a miss.
package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"newsagg/internal/article"
	"newsagg/internal/cache"
	"newsagg/internal/fetch"
	"newsagg/internal/metrics"
	"newsagg/internal/tracing"
)

// DefaultTTL is how long a cached response is served to foreground callers.
const DefaultTTL = 15 * time.Minute

// Source tells the caller where a result came from.
type Source string

const (
	SourceCache       Source = "cache"
	SourceAPI         Source = "api"
	SourcePlaceholder Source = "placeholder"
)

// Fetcher is the upstream call the service falls back to on a cache miss.
type Fetcher interface {
	Configured() bool
	Fetch(ctx context.Context, terms []string, filters *fetch.Filters) ([]article.Article, error)
}

// PreferenceSource resolves a user's current topics.
type PreferenceSource interface {
	Preferences(userID string) ([]string, error)
}

// Result is an article set and its origin.
type Result struct {
	Articles []article.Article
	Source   Source
}

type Options struct {
	TTL     time.Duration
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Service is safe for concurrent use. The store lock is never held while
// fetching.
type Service struct {
	store   *cache.Store
	fetcher Fetcher
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewService(store *cache.Store, fetcher Fetcher, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

// ForUser looks up the user's preferences and serves their personalized feed.
func (s *Service) ForUser(ctx context.Context, dir PreferenceSource, userID string) (Result, error) {
	prefs, err := dir.Preferences(userID)
	if err != nil {
		return Result{}, err
	}
	return s.Personalized(ctx, prefs)
}

// Personalized serves the feed for a preference set. Provider failures and a
// missing credential degrade to placeholder articles; a timeout does not.
func (s *Service) Personalized(ctx context.Context, prefs []string) (Result, error) {
	if len(prefs) == 0 {
		return Result{}, ErrNoPreferences
	}
	if !s.fetcher.Configured() {
		return placeholder(), nil
	}

	ctx, span := tracing.Tracer().Start(ctx, "news.personalized")
	defer span.End()

	key := cache.NewsKey(prefs)
	if e, ok := s.store.Lookup(key, s.ttl); ok {
		s.metrics.CacheLookup("news", true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return Result{Articles: e.Articles, Source: SourceCache}, nil
	}
	s.metrics.CacheLookup("news", false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	articles, err := s.fetcher.Fetch(ctx, prefs, nil)
	if err != nil {
		switch fetch.KindOf(err) {
		case fetch.KindTimeout:
			tracing.RecordError(span, err)
			return Result{}, ErrFetchTimeout
		case fetch.KindProvider, fetch.KindUnconfigured:
			s.log.Info("Serving placeholder news",
				zap.Strings("preferences", prefs),
				zap.Error(err),
			)
			return placeholder(), nil
		default:
			tracing.RecordError(span, err)
			return Result{}, fmt.Errorf("fetching personalized news: %w", err)
		}
	}

	s.store.Set(key, articles)
	return Result{Articles: article.Clone(articles), Source: SourceAPI}, nil
}

// Search runs a free-text query. Unlike the personalized feed, every failure
// is visible to the caller.
func (s *Service) Search(ctx context.Context, query string, f fetch.Filters) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrMissingQuery
	}
	if !s.fetcher.Configured() {
		return Result{}, ErrUnconfigured
	}
	return s.search(ctx, "search", query, f)
}

// Keyword is the path-parameter search. It shares the cache with a filterless
// Search and answers with a placeholder when no provider is configured.
func (s *Service) Keyword(ctx context.Context, keyword string) (Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Result{}, ErrMissingQuery
	}
	if !s.fetcher.Configured() {
		if e, ok := s.store.Lookup(cache.SearchKey(keyword, "", "", ""), s.ttl); ok {
			s.metrics.CacheLookup("keyword", true)
			return Result{Articles: e.Articles, Source: SourceCache}, nil
		}
		return Result{Articles: article.KeywordPlaceholder(keyword), Source: SourcePlaceholder}, nil
	}
	return s.search(ctx, "keyword", keyword, fetch.Filters{})
}

func (s *Service) search(ctx context.Context, endpoint, query string, f fetch.Filters) (Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "news."+endpoint)
	defer span.End()

	key := cache.SearchKey(query, f.From, f.To, f.SortBy)
	if e, ok := s.store.Lookup(key, s.ttl); ok {
		s.metrics.CacheLookup(endpoint, true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return Result{Articles: e.Articles, Source: SourceCache}, nil
	}
	s.metrics.CacheLookup(endpoint, false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var filters *fetch.Filters
	if f != (fetch.Filters{}) {
		filters = &f
	}
	articles, err := s.fetcher.Fetch(ctx, []string{query}, filters)
	if err != nil {
		tracing.RecordError(span, err)
		return Result{}, translate(err)
	}

	s.store.Set(key, articles)
	return Result{Articles: article.Clone(articles), Source: SourceAPI}, nil
}

// ClearCache empties the response cache.
func (s *Service) ClearCache() {
	n := s.store.Len()
	s.store.Clear()
	s.log.Info("Cache cleared", zap.Int("entries", n))
}

func translate(err error) error {
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		return fmt.Errorf("searching news: %w", err)
	}
	switch fe.Kind {
	case fetch.KindTimeout:
		return ErrFetchTimeout
	case fetch.KindUnconfigured:
		return ErrUnconfigured
	default:
		return &ProviderFailure{Status: fe.Status, Details: fe.Details}
	}
}

func placeholder() Result {
	return Result{Articles: article.Placeholder(), Source: SourcePlaceholder}
}
