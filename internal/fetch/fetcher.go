// Package fetch talks to the upstream news provider: a retrying HTTP client,
// the provider implementations, and the Fetcher that bounds every call with a
// timeout and classifies failures.
package fetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"newsagg/internal/article"
	"newsagg/internal/extractors"
	"newsagg/internal/extractors/filters"
	"newsagg/internal/metrics"
	"newsagg/internal/tracing"
)

// DefaultTimeout bounds a single provider call, retries included.
const DefaultTimeout = 10 * time.Second

// Options configure a Fetcher.
type Options struct {
	Timeout   time.Duration
	Blocklist *filters.FilterRegistry
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Fetcher wraps a Provider with a fixed timeout and error classification.
type Fetcher struct {
	provider Provider
	timeout  time.Duration
	blocked  *filters.FilterRegistry
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New creates a Fetcher around p. A nil provider behaves as unconfigured.
func New(p Provider, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Fetcher{
		provider: p,
		timeout:  opts.Timeout,
		blocked:  opts.Blocklist,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
}

// Configured reports whether a provider credential is available.
func (f *Fetcher) Configured() bool {
	return f.provider != nil && f.provider.Configured()
}

// Fetch queries the provider for any of terms (joined with OR). Every error
// it returns is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, terms []string, filters *Filters) ([]article.Article, error) {
	if !f.Configured() {
		return nil, &FetchError{Kind: KindUnconfigured, Details: "news provider is not configured"}
	}
	query := strings.Join(terms, " OR ")
	var flt Filters
	if filters != nil {
		flt = *filters
	}

	ctx, span := tracing.Tracer().Start(ctx, "news.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("news.provider", f.provider.Name()),
		attribute.String("news.query", query),
	)

	tctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	articles, err := f.provider.Search(tctx, query, flt)
	took := time.Since(start)

	if err != nil {
		fe := classify(err, errors.Is(tctx.Err(), context.DeadlineExceeded))
		if errors.Is(ctx.Err(), context.Canceled) && fe.Kind == KindProvider {
			fe.Details = "request canceled"
		}
		f.metrics.UpstreamFetch(fe.Kind.String(), took)
		tracing.RecordError(span, fe)
		f.log.Warn("Provider fetch failed",
			zap.String("provider", f.provider.Name()),
			zap.String("query", query),
			zap.Stringer("kind", fe.Kind),
			zap.Int("status", fe.Status),
			zap.Duration("took", took),
			zap.Error(err),
		)
		return nil, fe
	}

	out := make([]article.Article, 0, len(articles))
	for _, a := range articles {
		if !f.blocked.ShouldProcess(a.URL) {
			continue
		}
		if a.ID == "" && a.URL != "" {
			a.ID = extractors.GenerateGUIDFromURL(a.URL)
		}
		out = append(out, a)
	}

	f.metrics.UpstreamFetch("ok", took)
	span.SetAttributes(attribute.Int("news.articles", len(out)))
	tracing.RecordError(span, nil)
	f.log.Debug("Provider fetch succeeded",
		zap.String("provider", f.provider.Name()),
		zap.String("query", query),
		zap.Int("articles", len(out)),
		zap.Duration("took", took),
	)
	return out, nil
}
