package httpapi

import (
	"net/http"

	"github.com/meshforge/meshforge-maps/pkg/geo"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

func (s *Server) handleNodesGeoJSON(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, model.FeatureCollectionToGeoJSON(s.Store.All()))
}

// nodeSources are the networks addressable as /api/nodes/<source>; the
// propagation feed is an overlay, not a node source.
var nodeSources = map[model.Network]bool{
	model.NetworkMeshtastic: true,
	model.NetworkReticulum:  true,
	model.NetworkAREDN:      true,
}

func (s *Server) handleNodesBySource(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	source, ok := pathSuffix(r.URL.Path, "/api/nodes/")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing source")
		return
	}
	network := model.Network(source)
	if !nodeSources[network] {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, model.FeatureCollectionToGeoJSON(s.Store.ByNetwork(network)))
}

func (s *Server) handleNodeTrajectory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	rest, ok := pathSuffix(r.URL.Path, "/api/nodes/")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing node id")
		return
	}
	nodeID, ok := trimSuffixSegment(rest, "/trajectory")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	nodeID, err := geo.ValidateNodeID(nodeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, ok := querySince(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	traj, err := s.History.Trajectory(nodeID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.TrajectoryToGeoJSON(nodeID, traj))
}

func (s *Server) handleNodeHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	rest, ok := pathSuffix(r.URL.Path, "/api/nodes/")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing node id")
		return
	}
	nodeID, ok := trimSuffixSegment(rest, "/history")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	nodeID, err := geo.ValidateNodeID(nodeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, ok := querySince(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	obs, err := s.History.Trajectory(nodeID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(obs) > limit {
		obs = obs[len(obs)-limit:]
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleNodeHealth(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "node store unavailable")
		return
	}
	rest, ok := pathSuffix(r.URL.Path, "/api/nodes/")
	if !ok {
		writeError(w, http.StatusBadRequest, "missing node id")
		return
	}
	nodeID, ok := trimSuffixSegment(rest, "/health")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	nodeID, err := geo.ValidateNodeID(nodeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	feature, ok := s.Store.Get(nodeID)
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, nodeHealthReport(feature))
}

func nodeHealthReport(f model.Feature) map[string]interface{} {
	in := healthInputsFromFeature(f)
	score, status := healthScore(in)
	return map[string]interface{}{
		"node_id": f.ID,
		"score":   score,
		"status":  status,
	}
}

// trimSuffixSegment strips a trailing "/suffix" segment from rest,
// returning the remaining node id and false if rest doesn't end with it.
func trimSuffixSegment(rest, suffix string) (string, bool) {
	if len(rest) <= len(suffix) || rest[len(rest)-len(suffix):] != suffix {
		return "", false
	}
	return rest[:len(rest)-len(suffix)], true
}
