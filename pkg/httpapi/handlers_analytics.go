package httpapi

import (
	"net/http"
	"sort"
	"time"
)

func (s *Server) handleAnalyticsGrowth(w http.ResponseWriter, r *http.Request) {
	if s.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics unavailable")
		return
	}
	since, ok := querySince(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	interval := time.Hour
	trend, err := s.Analytics.NetworkGrowthTrend(since, interval)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// handleAnalyticsActivity buckets tracked nodes into the last 24
// one-hour buckets by their last-seen time (bucket 0 is the most recent
// hour). Each node is counted once, in the bucket of its last
// observation; nodes last seen more than 24 hours ago are not counted.
func (s *Server) handleAnalyticsActivity(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	tracked, err := s.History.TrackedNodes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	const buckets = 24
	now := time.Now()
	counts := make([]int, buckets)
	for _, n := range tracked {
		age := now.Sub(n.LastSeen)
		bucket := int(age / time.Hour)
		if bucket >= 0 && bucket < buckets {
			counts[bucket]++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bucket_hours": buckets,
		"active_nodes": counts,
	})
}

// handleAnalyticsRanking ranks tracked nodes by observation count,
// busiest first.
func (s *Server) handleAnalyticsRanking(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	tracked, err := s.History.TrackedNodes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sort.Slice(tracked, func(i, j int) bool {
		return tracked[i].ObservationCount > tracked[j].ObservationCount
	})
	if len(tracked) > limit {
		tracked = tracked[:limit]
	}
	writeJSON(w, http.StatusOK, tracked)
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	tracked, err := s.History.TrackedNodes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.History.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracked_nodes":      len(tracked),
		"total_observations": total,
	})
}

// handleAnalyticsAlertTrends buckets alert history into hourly counts
// per severity over the requested window.
func (s *Server) handleAnalyticsAlertTrends(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert engine unavailable")
		return
	}
	since, ok := querySince(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	type bucketKey struct {
		hour     int64
		severity string
	}
	counts := map[bucketKey]int{}
	for _, a := range s.Alerts.History("", "", 0) {
		if a.Timestamp.Before(since) {
			continue
		}
		key := bucketKey{hour: a.Timestamp.Unix() / 3600, severity: string(a.Severity)}
		counts[key]++
	}
	out := make([]map[string]interface{}, 0, len(counts))
	for key, n := range counts {
		out = append(out, map[string]interface{}{
			"hour":     time.Unix(key.hour*3600, 0).UTC(),
			"severity": key.severity,
			"count":    n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["hour"].(time.Time).Before(out[j]["hour"].(time.Time))
	})
	writeJSON(w, http.StatusOK, out)
}
