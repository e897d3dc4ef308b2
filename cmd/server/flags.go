package main

import (
	"context"
	"os"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"newsagg/internal/app"
)

const defaultConfigFile = "newsagg.yaml"

// configPath is the optional YAML file flags fall back to. Environment
// variables win over the file, command line flags win over both.
func configPath() string {
	if p := os.Getenv("NEWSAGG_CONFIG"); p != "" {
		return p
	}
	return defaultConfigFile
}

type serveFunc func(ctx context.Context, cfg *app.Config, trace bool) error

func newCommand(cfgFile string, run serveFunc) *cli.Command {
	src := altsrc.StringSourcer(cfgFile)
	from := func(key string, env ...string) cli.ValueSourceChain {
		chain := make([]cli.ValueSource, 0, len(env)+1)
		for _, e := range env {
			chain = append(chain, cli.EnvVar(e))
		}
		chain = append(chain, yaml.YAML(key, src))
		return cli.NewValueSourceChain(chain...)
	}
	def := app.DefaultConfig()

	return &cli.Command{
		Name:    "newsagg",
		Usage:   "personalized news aggregation API",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Value: def.Env, Usage: "runtime environment (development, production)", Sources: from("env", "APP_ENV")},
			&cli.StringFlag{Name: "addr", Value: def.Addr, Usage: "HTTP listen address", Sources: from("server.addr", "ADDR")},
			&cli.StringFlag{Name: "port", Usage: "HTTP port, overrides the port of --addr", Sources: from("server.port", "PORT")},
			&cli.DurationFlag{Name: "shutdown-timeout", Value: def.ShutdownTimeout, Sources: from("server.shutdown_timeout")},
			&cli.FloatFlag{Name: "rate-limit", Value: def.RateLimitRPS, Usage: "requests per second, 0 disables", Sources: from("server.rate_limit", "RATE_LIMIT_RPS")},
			&cli.IntFlag{Name: "rate-burst", Value: def.RateLimitBurst, Sources: from("server.rate_burst", "RATE_LIMIT_BURST")},

			&cli.StringFlag{Name: "provider", Value: def.Provider, Usage: "news provider (gnews, rss)", Sources: from("news.provider", "NEWS_PROVIDER")},
			&cli.StringFlag{Name: "api-key", Usage: "news provider API key", Sources: from("news.api_key", "NEWS_API_KEY")},
			&cli.StringFlag{Name: "api-base-url", Value: def.NewsAPIBaseURL, Sources: from("news.base_url", "NEWS_API_BASE_URL")},
			&cli.StringFlag{Name: "rss-search-url", Value: def.RSSSearchURL, Sources: from("news.rss_search_url", "RSS_SEARCH_URL")},
			&cli.DurationFlag{Name: "request-timeout", Value: def.RequestTimeout, Sources: from("news.timeout", "NEWS_REQUEST_TIMEOUT")},
			&cli.IntFlag{Name: "retries", Value: def.RetryMax, Sources: from("news.retries")},
			&cli.StringSliceFlag{Name: "block", Usage: "domain or domain/path to drop from results", Sources: from("news.block", "BLOCK_DOMAINS")},

			&cli.DurationFlag{Name: "cache-ttl", Value: def.CacheTTL, Sources: from("cache.ttl", "CACHE_TTL")},
			&cli.DurationFlag{Name: "refresh-interval", Value: def.RefreshInterval, Sources: from("refresh.interval", "REFRESH_INTERVAL")},
			&cli.DurationFlag{Name: "refresh-delay", Value: def.RefreshStartupDelay, Sources: from("refresh.startup_delay")},
			&cli.DurationFlag{Name: "refresh-pacing", Value: def.RefreshPacing, Sources: from("refresh.pacing")},
			&cli.BoolFlag{Name: "no-refresh", Usage: "disable the background refresher", Sources: from("refresh.disabled", "DISABLE_REFRESH")},

			&cli.IntFlag{Name: "content-cache-size", Value: int(def.ContentCacheSize), Sources: from("content.cache_size")},
			&cli.DurationFlag{Name: "content-cache-ttl", Value: def.ContentCacheTTL, Sources: from("content.cache_ttl")},
			&cli.StringFlag{Name: "site-rules", Usage: "YAML file with per-site content selectors", Sources: from("content.site_rules", "SITE_RULES")},
			&cli.BoolFlag{Name: "extract-allow-private", Usage: "allow article extraction from private and loopback addresses", Sources: from("content.allow_private", "EXTRACT_ALLOW_PRIVATE")},

			&cli.StringFlag{Name: "jwt-secret", Value: def.JWTSecret, Sources: from("auth.jwt_secret", "JWT_SECRET")},
			&cli.DurationFlag{Name: "token-ttl", Value: def.TokenTTL, Sources: from("auth.token_ttl", "TOKEN_TTL")},
			&cli.IntFlag{Name: "bcrypt-cost", Value: def.BcryptCost, Sources: from("auth.bcrypt_cost")},
			&cli.StringFlag{Name: "seed-users", Usage: "YAML file with users to create at startup", Sources: from("auth.seed_users", "SEED_USERS")},

			&cli.BoolFlag{Name: "trace", Usage: "print OpenTelemetry spans to stdout", Sources: from("trace", "TRACE")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, configFromCommand(cmd), cmd.Bool("trace"))
		},
	}
}

func configFromCommand(cmd *cli.Command) *app.Config {
	cfg := app.DefaultConfig()
	cfg.Env = cmd.String("env")
	cfg.Addr = cmd.String("addr")
	if p := cmd.String("port"); p != "" {
		cfg.Addr = ":" + p
	}
	cfg.ShutdownTimeout = cmd.Duration("shutdown-timeout")
	cfg.RateLimitRPS = cmd.Float("rate-limit")
	cfg.RateLimitBurst = cmd.Int("rate-burst")

	cfg.Provider = cmd.String("provider")
	cfg.NewsAPIKey = cmd.String("api-key")
	cfg.NewsAPIBaseURL = cmd.String("api-base-url")
	cfg.RSSSearchURL = cmd.String("rss-search-url")
	cfg.RequestTimeout = positive(cmd.Duration("request-timeout"), cfg.RequestTimeout)
	cfg.RetryMax = cmd.Int("retries")
	cfg.BlockedDomains = cmd.StringSlice("block")

	cfg.CacheTTL = positive(cmd.Duration("cache-ttl"), cfg.CacheTTL)
	cfg.RefreshInterval = positive(cmd.Duration("refresh-interval"), cfg.RefreshInterval)
	cfg.RefreshStartupDelay = cmd.Duration("refresh-delay")
	cfg.RefreshPacing = cmd.Duration("refresh-pacing")
	cfg.DisableRefresh = cmd.Bool("no-refresh")

	cfg.ContentCacheSize = int64(cmd.Int("content-cache-size"))
	cfg.ContentCacheTTL = positive(cmd.Duration("content-cache-ttl"), cfg.ContentCacheTTL)
	cfg.SiteRulesFile = cmd.String("site-rules")
	cfg.ExtractAllowPrivate = cmd.Bool("extract-allow-private")

	cfg.JWTSecret = cmd.String("jwt-secret")
	cfg.TokenTTL = positive(cmd.Duration("token-ttl"), cfg.TokenTTL)
	cfg.BcryptCost = cmd.Int("bcrypt-cost")
	cfg.SeedUsersFile = cmd.String("seed-users")
	return cfg
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
