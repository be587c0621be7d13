package httpapi

import (
	"net/http"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/health"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// healthInputsFromFeature extracts whichever telemetry properties a
// feature actually carries into health.Inputs, leaving the rest nil so
// Score normalizes over only the present components.
func healthInputsFromFeature(f model.Feature) health.Inputs {
	var in health.Inputs
	if v, ok := f.GetFloat(model.PropBattery); ok {
		in.BatteryPercent = &v
	}
	if v, ok := f.GetFloat(model.PropSNR); ok {
		in.SNR = &v
	}
	if v, ok := f.GetFloat(model.PropChannelUtil); ok {
		in.ChannelUtilPct = &v
	}
	if v, ok := f.GetFloat(model.PropLastSeen); ok {
		since := time.Since(time.Unix(int64(v), 0)).Seconds()
		in.SecondsSinceSeen = &since
	}
	return in
}

func healthScore(in health.Inputs) (float64, health.Status) {
	return health.Score(in)
}

func (s *Server) handleNodeHealthSummary(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	counts := map[health.Status]int{}
	for _, f := range s.Store.All() {
		_, status := healthScore(healthInputsFromFeature(f))
		counts[status]++
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleNodeHealthAll(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	reports := make([]map[string]interface{}, 0, s.Store.Len())
	for _, f := range s.Store.All() {
		reports = append(reports, nodeHealthReport(f))
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if s.Store != nil {
		status["node_count"] = s.Store.Len()
	}
	if s.Bus != nil {
		status["event_bus"] = s.Bus.Stats()
	}
	if s.Breakers != nil {
		status["breakers"] = s.Breakers.All()
	}
	if s.MQTT != nil {
		status["mqtt_connected"] = s.MQTT.Connected()
	}
	// The ws block is omitted entirely when the broadcaster is absent;
	// clients fall back to HTTP polling.
	if s.WS != nil {
		status["ws"] = map[string]interface{}{
			"port":    s.WS.Port(),
			"clients": s.WS.ClientCount(),
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if s.Perf == nil {
		writeError(w, http.StatusServiceUnavailable, "perf recorder unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.Perf.Snapshots())
}

func (s *Server) handleNodeStates(w http.ResponseWriter, r *http.Request) {
	if s.State == nil {
		writeError(w, http.StatusServiceUnavailable, "state machine unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.State.All())
}

func (s *Server) handleNodeStatesSummary(w http.ResponseWriter, r *http.Request) {
	if s.State == nil {
		writeError(w, http.StatusServiceUnavailable, "state machine unavailable")
		return
	}
	counts := map[string]int{}
	for _, st := range s.State.All() {
		counts[string(st)]++
	}
	writeJSON(w, http.StatusOK, counts)
}
