package httpapi

import "net/http"

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings.Redacted())
}

// handleTileProviders reports the fixed set of tile sources the map
// frontend can choose from; configuring a custom tile URL is an Open
// Question the aggregator doesn't resolve, so this is the static
// default set every client falls back to.
func (s *Server) handleTileProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{
		{"name": "OpenStreetMap", "url": "https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
		{"name": "OpenTopoMap", "url": "https://tile.opentopomap.org/{z}/{x}/{y}.png"},
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources := map[string]bool{
		"meshtastic": s.MQTT != nil,
		"reticulum":  len(s.Settings.Sources.Reticulum.Command) > 0,
		"aredn":      len(s.Settings.Sources.WiFiMesh) > 0,
		"hamclock":   s.Settings.Sources.Propagation.LocalHost != "",
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if s.Aggregator == nil || s.Aggregator.Overlay() == nil {
		writeError(w, http.StatusServiceUnavailable, "no overlay data yet")
		return
	}
	writeJSON(w, http.StatusOK, s.Aggregator.Overlay())
}

func (s *Server) handleHamclock(w http.ResponseWriter, r *http.Request) {
	s.handleOverlay(w, r)
}
