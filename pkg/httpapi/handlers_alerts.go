package httpapi

import "net/http"

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert engine unavailable")
		return
	}
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	severity := severityParam(r)
	nodeID := r.URL.Query().Get("node_id")
	writeJSON(w, http.StatusOK, s.Alerts.History(severity, nodeID, limit))
}

func (s *Server) handleAlertsActive(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert engine unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.Alerts.Active())
}

func (s *Server) handleAlertRules(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert engine unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.Alerts.Rules())
}

func (s *Server) handleAlertsSummary(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert engine unavailable")
		return
	}
	counts := map[string]int{}
	active := 0
	for _, a := range s.Alerts.History("", "", 0) {
		counts[string(a.Severity)]++
		if !a.Acknowledged {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"by_severity":  counts,
		"active_count": active,
	})
}

func (s *Server) handleMQTTStats(w http.ResponseWriter, r *http.Request) {
	connected := false
	if s.MQTT != nil {
		connected = s.MQTT.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected": connected,
	})
}
