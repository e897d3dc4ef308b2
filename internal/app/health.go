package app

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// handleHealth returns JSON health information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	last, cycles := s.refresher.LastCycle()
	lastRun := "never"
	if cycles > 0 {
		lastRun = humanize.Time(last.StartedAt)
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"service":             "newsagg",
		"version":             version,
		"provider":            s.cfg.Provider,
		"provider_configured": s.fetcher.Configured(),
		"cache_size":          s.store.Len(),
		"users":               s.users.Len(),
		"uptime":              humanize.RelTime(s.started, now, "", ""),
		"refresher": map[string]any{
			"running":    s.refresher.Running(),
			"cycles":     cycles,
			"last_run":   lastRun,
			"last_cycle": last,
		},
		"timestamp": now.Format(time.RFC3339),
	})
}
