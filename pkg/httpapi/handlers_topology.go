package httpapi

import "net/http"

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.Store.AllLinks())
}

// handleTopologyGeoJSON renders each link as a LineString feature so
// map clients can draw both nodes and links from GeoJSON alone.
func (s *Server) handleTopologyGeoJSON(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	links := s.Store.AllLinks()
	features := make([]map[string]interface{}, 0, len(links))
	for _, link := range links {
		sourceNode, sourceOK := s.Store.Get(link.Source)
		targetNode, targetOK := s.Store.Get(link.Target)
		if !sourceOK || !targetOK || sourceNode.Geometry == nil || targetNode.Geometry == nil {
			continue
		}
		features = append(features, map[string]interface{}{
			"type": "Feature",
			"geometry": map[string]interface{}{
				"type": "LineString",
				"coordinates": [][2]float64{
					{sourceNode.Geometry.Lon, sourceNode.Geometry.Lat},
					{targetNode.Geometry.Lon, targetNode.Geometry.Lat},
				},
			},
			"properties": map[string]interface{}{
				"source":    link.Source,
				"target":    link.Target,
				"snr":       link.SNR,
				"quality":   link.Quality,
				"color":     link.Color,
				"network":   link.Network,
				"link_type": link.LinkType,
			},
		})
	}
	writeGeoJSON(w, http.StatusOK, features)
}

func (s *Server) handleConfigDrift(w http.ResponseWriter, r *http.Request) {
	if s.Drift == nil {
		writeError(w, http.StatusServiceUnavailable, "drift detector unavailable")
		return
	}
	since, ok := querySince(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	severity := severityParam(r)
	writeJSON(w, http.StatusOK, s.Drift.History(since, severity))
}
