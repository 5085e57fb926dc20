package web

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"contentcal/internal/api"
	appLog "contentcal/internal/log"
	"contentcal/internal/model"
)

// statsCacheTTL bounds how stale an on-demand /api/stats answer may be.
// The cron job normally keeps the cache warm.
const statsCacheTTL = time.Minute

// statsCache holds the last computed stats and when they were computed.
type statsCache struct {
	stats     model.Stats
	updatedAt time.Time
}

type statsResponse struct {
	model.Stats
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshStats recomputes the status counts. Each count is a one-item page
// read of the upstream total, issued concurrently.
func (s *Server) RefreshStats(ctx context.Context) (model.Stats, error) {
	counts := make([]int, len(model.Statuses))
	var total int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := s.backend.ListItems(gctx, api.ItemQuery{Limit: 1})
		if err != nil {
			return err
		}
		total = page.Total
		return nil
	})
	for i, st := range model.Statuses {
		g.Go(func() error {
			page, err := s.backend.ListItems(gctx, api.ItemQuery{Filters: model.Filters{Status: st}, Limit: 1})
			if err != nil {
				return err
			}
			counts[i] = page.Total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}

	stats := model.Stats{Total: total, ByStatus: make(map[model.Status]int, len(counts))}
	for i, st := range model.Statuses {
		stats.ByStatus[st] = counts[i]
	}

	s.statsMu.Lock()
	s.statsCache = &statsCache{stats: stats, updatedAt: s.now()}
	s.statsMu.Unlock()

	appLog.Debug("stats refreshed", "total", total)
	return stats, nil
}

func (s *Server) cachedStats() (*statsCache, bool) {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	sc := s.statsCache
	return sc, sc != nil && s.now().Sub(sc.updatedAt) < statsCacheTTL
}

// handleStats serves the cached counts, recomputing them when stale. If
// upstream fails and an older value exists, the older value is served.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if sc, fresh := s.cachedStats(); fresh {
		writeJSON(w, http.StatusOK, statsResponse{Stats: sc.stats, UpdatedAt: sc.updatedAt})
		return
	}

	if _, err := s.RefreshStats(r.Context()); err != nil {
		if sc, _ := s.cachedStats(); sc != nil {
			appLog.Warn("stats refresh failed, serving stale value", "err", err, "age", s.now().Sub(sc.updatedAt).String())
			writeJSON(w, http.StatusOK, statsResponse{Stats: sc.stats, UpdatedAt: sc.updatedAt})
			return
		}
		writeErr(w, err)
		return
	}
	sc, _ := s.cachedStats()
	writeJSON(w, http.StatusOK, statsResponse{Stats: sc.stats, UpdatedAt: sc.updatedAt})
}
