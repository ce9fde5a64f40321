package http

import (
	"net/http"
	"strconv"

	"spendbook/internal/aggregate"
	"spendbook/internal/cache"
	"spendbook/internal/core"
	"spendbook/internal/log"
)

// handleDashboard serves the summary for the optional from/to range. Results
// are cached per store version, range and current day.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	// Version before snapshot: a racing write can only file newer data
	// under an older key, never the reverse.
	version := s.store.Version()
	now := s.now()
	key := cache.Key(
		strconv.FormatUint(version, 10),
		rng.From.String(),
		rng.To.String(),
		core.DateOf(now).String(),
	)
	if stats, ok := s.dashboardCache.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := aggregate.Dashboard(s.store.Snapshot(), rng, now)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	s.dashboardCache.Set(key, stats)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, stats)
}
