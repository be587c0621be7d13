package httpapi

import (
	"net/http"
	"strings"
)

// routes registers every handler on s.mux. Static paths are registered
// exactly; dynamic segments (node id, analytics kind) are registered
// under their shared prefix and dispatched by suffix inside the
// handler, since http.ServeMux in this Go toolchain resolves the
// longest matching pattern first -- an exact "/api/nodes/geojson"
// always wins over the "/api/nodes/" prefix fallback.
func (s *Server) routes() {
	get := func(pattern string, h http.HandlerFunc) {
		s.mux.HandleFunc(pattern, methodGuard(http.MethodGet, h))
	}

	get("/api/nodes/geojson", s.handleNodesGeoJSON)
	get("/api/nodes/", s.handleNodesDispatch)
	get("/api/topology", s.handleTopology)
	get("/api/topology/geojson", s.handleTopologyGeoJSON)
	get("/api/overlay", s.handleOverlay)
	get("/api/hamclock", s.handleHamclock)
	get("/api/node-health/summary", s.handleNodeHealthSummary)
	get("/api/node-health", s.handleNodeHealthAll)
	get("/api/health", s.handleHealth)
	get("/api/status", s.handleStatus)
	get("/api/perf", s.handlePerf)
	get("/api/node-states/summary", s.handleNodeStatesSummary)
	get("/api/node-states", s.handleNodeStates)
	get("/api/config-drift", s.handleConfigDrift)
	get("/api/mqtt/stats", s.handleMQTTStats)
	get("/api/alerts/active", s.handleAlertsActive)
	get("/api/alerts/rules", s.handleAlertRules)
	get("/api/alerts/summary", s.handleAlertsSummary)
	get("/api/alerts", s.handleAlerts)
	get("/api/analytics/growth", s.handleAnalyticsGrowth)
	get("/api/analytics/activity", s.handleAnalyticsActivity)
	get("/api/analytics/ranking", s.handleAnalyticsRanking)
	get("/api/analytics/summary", s.handleAnalyticsSummary)
	get("/api/analytics/alert-trends", s.handleAnalyticsAlertTrends)
	get("/api/config", s.handleConfig)
	get("/api/tile-providers", s.handleTileProviders)
	get("/api/sources", s.handleSources)
	get("/api/export/nodes", s.handleExportNodes)
	get("/api/export/alerts", s.handleExportAlerts)
	get("/api/export/analytics/", s.handleExportAnalytics)
	get("/", s.handleIndex)
}

// handleNodesDispatch serves every /api/nodes/<...> route not already
// claimed by an exact pattern: /api/nodes/<source> (GeoJSON by
// network), /api/nodes/<id>/trajectory, /api/nodes/<id>/history, and
// /api/nodes/<id>/health.
func (s *Server) handleNodesDispatch(w http.ResponseWriter, r *http.Request) {
	rest, ok := pathSuffix(r.URL.Path, "/api/nodes/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch {
	case strings.HasSuffix(rest, "/trajectory"):
		s.handleNodeTrajectory(w, r)
	case strings.HasSuffix(rest, "/history"):
		s.handleNodeHistory(w, r)
	case strings.HasSuffix(rest, "/health"):
		s.handleNodeHealth(w, r)
	default:
		s.handleNodesBySource(w, r)
	}
}

func methodGuard(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}
