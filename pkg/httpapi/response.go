package httpapi

import (
	"encoding/json"
	"net/http"
)

// apiError is the JSON body returned for any non-2xx response.
type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Nothing left to do: headers and status are already written.
		return
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

func writeGeoJSON(w http.ResponseWriter, status int, features interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
}
