// Package refresh keeps the personalized feed entries of active users warm.
// A single background loop walks every user with preferences on a fixed
// interval and refetches entries that have aged past that interval.
package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"newsagg/internal/article"
	"newsagg/internal/cache"
	"newsagg/internal/fetch"
	"newsagg/internal/metrics"
	"newsagg/internal/users"
)

const (
	DefaultInterval     = 10 * time.Minute
	DefaultStartupDelay = 5 * time.Second
	DefaultPacing       = time.Second
)

// Fetcher is the upstream call used to rebuild an entry.
type Fetcher interface {
	Configured() bool
	Fetch(ctx context.Context, terms []string, filters *fetch.Filters) ([]article.Article, error)
}

// UserSource lists the users whose feeds should be kept warm.
type UserSource interface {
	WithPreferences() []users.Snapshot
}

type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// Pacing is the minimum gap between two upstream calls in one cycle.
	Pacing  time.Duration
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// CycleStats summarises one refresh cycle.
type CycleStats struct {
	StartedAt  time.Time     `json:"startedAt"`
	Took       time.Duration `json:"took"`
	Users      int           `json:"users"`
	Refreshed  int           `json:"refreshed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Configured bool          `json:"configured"`
}

// Refresher owns the background loop. Start and Stop may be called from any
// goroutine; cycles never overlap.
type Refresher struct {
	store   *cache.Store
	fetcher Fetcher
	users   UserSource

	interval     time.Duration
	startupDelay time.Duration
	pacing       time.Duration
	metrics      *metrics.Metrics
	log          *zap.Logger

	runMu sync.Mutex // serialises cycles

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   CycleStats
	cycles int
}

func New(store *cache.Store, fetcher Fetcher, src UserSource, opts Options) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StartupDelay < 0 {
		opts.StartupDelay = 0
	}
	if opts.Pacing < 0 {
		opts.Pacing = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Refresher{
		store:        store,
		fetcher:      fetcher,
		users:        src,
		interval:     opts.Interval,
		startupDelay: opts.StartupDelay,
		pacing:       opts.Pacing,
		metrics:      opts.Metrics,
		log:          opts.Logger,
	}
}

// Start launches the loop. It returns false, doing nothing, when a loop is
// already active.
func (r *Refresher) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go r.loop(ctx, done)
	r.log.Info("Background refresh started",
		zap.Duration("interval", r.interval),
		zap.Duration("startup_delay", r.startupDelay),
	)
	return true
}

// Stop prevents future cycles. A cycle already running completes.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	r.log.Info("Background refresh stopped")
}

// Wait blocks until the most recently started loop has exited.
func (r *Refresher) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a loop is active.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// LastCycle returns the stats of the latest completed cycle and how many
// cycles have completed.
func (r *Refresher) LastCycle() (CycleStats, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.cycles
}

func (r *Refresher) loop(stop context.Context, done chan struct{}) {
	defer close(done)

	startup := time.NewTimer(r.startupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop.Done():
			return
		case <-startup.C:
		case <-ticker.C:
		}
		// The cycle outlives Stop.
		r.RunCycle(context.WithoutCancel(stop))
	}
}

// RunCycle performs one refresh pass and returns its stats.
func (r *Refresher) RunCycle(ctx context.Context) (stats CycleStats) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	start := time.Now()
	stats = CycleStats{StartedAt: r.store.Now(), Configured: r.fetcher.Configured()}
	defer func() {
		stats.Took = time.Since(start)
		r.mu.Lock()
		r.last = stats
		r.cycles++
		r.mu.Unlock()
	}()

	if !stats.Configured {
		r.log.Debug("Skipping refresh cycle, provider not configured")
		return stats
	}
	r.metrics.RefreshCycle()

	limit := rate.Inf
	if r.pacing > 0 {
		limit = rate.Every(r.pacing)
	}
	pacer := rate.NewLimiter(limit, 1)

	snaps := r.users.WithPreferences()
	stats.Users = len(snaps)
	for _, snap := range snaps {
		if len(snap.Preferences) == 0 {
			continue
		}
		key := cache.NewsKey(snap.Preferences)
		if e, ok := r.store.Get(key); ok && r.store.IsFresh(e, r.interval) {
			stats.Skipped++
			r.metrics.RefreshOutcome("skipped")
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			r.log.Warn("Refresh cycle aborted", zap.Error(err))
			break
		}

		articles, err := r.fetcher.Fetch(ctx, snap.Preferences, nil)
		if err != nil {
			stats.Failed++
			r.metrics.RefreshOutcome("failed")
			r.log.Warn("Refresh failed for user",
				zap.String("user_id", snap.UserID),
				zap.Stringer("kind", fetch.KindOf(err)),
				zap.Error(err),
			)
			continue
		}
		r.store.Set(key, articles)
		stats.Refreshed++
		r.metrics.RefreshOutcome("refreshed")
		r.log.Debug("Refreshed feed",
			zap.String("user_id", snap.UserID),
			zap.Int("articles", len(articles)),
		)
	}

	r.log.Info("Refresh cycle completed",
		zap.Int("users", stats.Users),
		zap.Int("refreshed", stats.Refreshed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return stats
}
