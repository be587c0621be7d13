package httpapi

import "net/http"

// exportFormat reads the optional "format" query parameter; CSV is the
// default, and anything other than csv/json is rejected.
func exportFormat(r *http.Request) (string, bool) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		return "csv", true
	case "json":
		return "json", true
	default:
		return "", false
	}
}

func (s *Server) handleExportNodes(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	format, ok := exportFormat(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid format")
		return
	}
	if format == "json" {
		writeJSON(w, http.StatusOK, s.Store.All())
		return
	}
	writeNodesCSV(w, s.Store.All())
}

func (s *Server) handleExportAlerts(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert engine unavailable")
		return
	}
	format, ok := exportFormat(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid format")
		return
	}
	alerts := s.Alerts.History("", "", 0)
	if format == "json" {
		writeJSON(w, http.StatusOK, alerts)
		return
	}
	writeAlertsCSV(w, alerts)
}

func (s *Server) handleExportAnalytics(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathSuffix(r.URL.Path, "/api/export/analytics/")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing analytics kind")
		return
	}
	switch kind {
	case "growth":
		s.handleAnalyticsGrowth(w, r)
	case "activity":
		s.handleAnalyticsActivity(w, r)
	case "ranking":
		s.handleAnalyticsRanking(w, r)
	case "summary":
		s.handleAnalyticsSummary(w, r)
	case "alert-trends":
		s.handleAnalyticsAlertTrends(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown analytics kind")
	}
}
