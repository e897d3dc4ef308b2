// Package app wires the news aggregation API: configuration, routes,
// handlers and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"newsagg/internal/auth"
	"newsagg/internal/cache"
	"newsagg/internal/extractors"
	"newsagg/internal/extractors/filters"
	"newsagg/internal/fetch"
	"newsagg/internal/library"
	"newsagg/internal/logger"
	"newsagg/internal/metrics"
	"newsagg/internal/news"
	"newsagg/internal/ratelimit"
	"newsagg/internal/refresh"
	"newsagg/internal/users"
)

const (
	ProviderGNews = "gnews"
	ProviderRSS   = "rss"

	defaultJWTSecret = "change-me-in-production"
	version          = "1.0.0"
)

// Config holds runtime settings for the server.
type Config struct {
	Env  string
	Addr string

	// Upstream provider
	Provider       string
	NewsAPIKey     string
	NewsAPIBaseURL string
	RSSSearchURL   string
	UserAgent      string
	RequestTimeout time.Duration
	RetryMax       int
	BlockedDomains []string

	// Response cache and background refresh
	CacheTTL            time.Duration
	RefreshInterval     time.Duration
	RefreshStartupDelay time.Duration
	RefreshPacing       time.Duration
	DisableRefresh      bool

	// Extracted article bodies
	ContentCacheSize int64
	ContentCacheTTL  time.Duration
	SiteRulesFile    string
	// ExtractAllowPrivate lets extraction reach loopback and private
	// addresses. Favorite URLs are user input, so this stays off outside tests.
	ExtractAllowPrivate bool

	// Accounts
	JWTSecret     string
	TokenTTL      time.Duration
	BcryptCost    int
	SeedUsersFile string

	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Env:                 "development",
		Addr:                ":3000",
		Provider:            ProviderGNews,
		NewsAPIBaseURL:      fetch.DefaultGNewsBaseURL,
		RSSSearchURL:        fetch.DefaultRSSSearchURL,
		UserAgent:           "newsagg/" + version,
		RequestTimeout:      fetch.DefaultTimeout,
		RetryMax:            1,
		CacheTTL:            news.DefaultTTL,
		RefreshInterval:     refresh.DefaultInterval,
		RefreshStartupDelay: refresh.DefaultStartupDelay,
		RefreshPacing:       refresh.DefaultPacing,
		ContentCacheSize:    1000,
		ContentCacheTTL:     extractors.ContentTTL,
		JWTSecret:           defaultJWTSecret,
		TokenTTL:            auth.DefaultTokenTTL,
		BcryptCost:          10,
		RateLimitRPS:        50,
		RateLimitBurst:      100,
		ShutdownTimeout:     10 * time.Second,
	}
}

// Server is the application server. It owns the long-lived state shared by
// handlers: the response cache, the refresher and the in-memory directories.
type Server struct {
	cfg *Config
	log *zap.Logger

	store      *cache.Store
	fetcher    *fetch.Fetcher
	news       *news.Service
	refresher  *refresh.Refresher
	users      *users.Directory
	library    *library.Library
	issuer     *auth.Issuer
	extractors *extractors.Registry
	content    *cache.ContentCache[*extractors.Content]
	metrics    *metrics.Metrics
	limiter    *ratelimit.Limiter

	mux     *http.ServeMux
	handler http.Handler
	started time.Time
}

// NewServer creates a new Server with provided config.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := logger.Log
	m := metrics.New()

	hc := fetch.NewClient(fetch.ClientOptions{
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
		RetryMax:  cfg.RetryMax,
		Logger:    log.Named("http"),
	})

	var provider fetch.Provider
	switch cfg.Provider {
	case ProviderGNews, "":
		provider = fetch.NewGNewsProvider(hc, cfg.NewsAPIBaseURL, cfg.NewsAPIKey)
	case ProviderRSS:
		provider = fetch.NewRSSProvider(hc, cfg.RSSSearchURL)
	default:
		return nil, fmt.Errorf("unknown news provider %q", cfg.Provider)
	}
	fetcher := fetch.New(provider, fetch.Options{
		Timeout:   cfg.RequestTimeout,
		Blocklist: filters.ParseBlocklist(cfg.BlockedDomains),
		Metrics:   m,
		Logger:    log,
	})

	store := cache.NewStore()
	m.RegisterCacheSize(store.Len)

	dir := users.NewDirectory(cfg.BcryptCost)
	if cfg.SeedUsersFile != "" {
		n, err := dir.LoadSeed(cfg.SeedUsersFile)
		if err != nil {
			return nil, err
		}
		log.Info("Seed users loaded", zap.Int("users", n), zap.String("file", cfg.SeedUsersFile))
	}

	content, err := cache.NewContentCache[*extractors.Content](cfg.ContentCacheSize, cfg.ContentCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}
	ec := fetch.NewClient(fetch.ClientOptions{
		Timeout:              cfg.RequestTimeout,
		UserAgent:            cfg.UserAgent,
		RetryMax:             cfg.RetryMax,
		BlockPrivateNetworks: !cfg.ExtractAllowPrivate,
		Logger:               log.Named("extract.http"),
	})
	page := extractors.NewReadableExtractor(ec.StandardClient(), content, log.Named("extract"))
	reg := extractors.NewRegistry()
	reg.RegisterDefault(page)
	if cfg.SiteRulesFile != "" {
		rules, err := extractors.LoadSiteRules(cfg.SiteRulesFile)
		if err != nil {
			content.Close()
			return nil, err
		}
		reg.RegisterSites(rules, page)
		log.Info("Site extraction rules loaded", zap.Int("sites", len(rules)), zap.String("file", cfg.SiteRulesFile))
	}

	if cfg.JWTSecret == defaultJWTSecret && cfg.Env == "production" {
		log.Warn("JWT secret is the built-in default; set JWT_SECRET")
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		store:   store,
		fetcher: fetcher,
		news: news.NewService(store, fetcher, news.Options{
			TTL:     cfg.CacheTTL,
			Metrics: m,
			Logger:  log,
		}),
		refresher: refresh.New(store, fetcher, dir, refresh.Options{
			Interval:     cfg.RefreshInterval,
			StartupDelay: cfg.RefreshStartupDelay,
			Pacing:       cfg.RefreshPacing,
			Metrics:      m,
			Logger:       log.Named("refresh"),
		}),
		users:      dir,
		library:    library.New(),
		issuer:     auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		extractors: reg,
		content:    content,
		metrics:    m,
		limiter:    ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		mux:        http.NewServeMux(),
		started:    time.Now(),
	}

	s.registerRoutes()
	s.handler = s.middleware(s.mux)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr and starts the background refresher. It returns after
// ctx is cancelled and the server has shut down.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = s.cfg.Addr
	}
	h := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !s.cfg.DisableRefresh {
		s.refresher.Start()
	}
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening",
			zap.String("addr", addr),
			zap.String("provider", s.cfg.Provider),
			zap.Bool("provider_configured", s.fetcher.Configured()),
		)
		errCh <- h.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := h.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops background work. A refresh cycle already in flight finishes
// on its own.
func (s *Server) Close() {
	s.refresher.Stop()
	s.content.Close()
}

func (s *Server) registerRoutes() {
	s.route(http.MethodGet, "/{$}", s.handleHome, false)
	s.route(http.MethodGet, "/health", s.handleHealth, false)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.route(http.MethodPost, "/users/signup", s.handleSignup, false)
	s.route(http.MethodPost, "/users/login", s.handleLogin, false)
	s.route(http.MethodGet, "/users/me", s.handleProfile, true)
	s.route(http.MethodGet, "/users/preferences", s.handleGetPreferences, true)
	s.route(http.MethodPut, "/users/preferences", s.handleSetPreferences, true)

	s.route(http.MethodGet, "/news", s.handleNews, true)
	s.route(http.MethodGet, "/news/search", s.handleSearch, true)
	s.route(http.MethodGet, "/news/search/{keyword}", s.handleKeyword, true)
	s.route(http.MethodPost, "/news/clear-cache", s.handleClearCache, true)

	s.route(http.MethodPost, "/news/{id}/read", s.handleMarkRead, true)
	s.route(http.MethodGet, "/news/read", s.handleReadList, true)
	s.route(http.MethodPost, "/news/{id}/favorite", s.handleAddFavorite, true)
	s.route(http.MethodGet, "/news/favorites", s.handleFavorites, true)
	s.route(http.MethodGet, "/news/favorites/feed", s.handleFavoritesFeed, true)
	s.route(http.MethodGet, "/news/favorites/{id}/content", s.handleFavoriteContent, true)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "News Aggregator API",
		"version": version,
		"endpoints": map[string]string{
			"auth":        "/users",
			"preferences": "/users/preferences",
			"news":        "/news",
			"health":      "/health",
			"metrics":     "/metrics",
		},
	})
}
