package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

// severityParam reads the optional "severity" query parameter, returning
// the zero Severity (meaning "any") when absent.
func severityParam(r *http.Request) model.Severity {
	return model.Severity(r.URL.Query().Get("severity"))
}

const (
	defaultLimit = 100
	minLimit     = 1
	maxLimit     = 10000
)

// queryLimit reads "limit" from the request, defaulting to defaultLimit
// and clamping into [minLimit, maxLimit]. A malformed value is an error,
// per the handler contract: bad input is rejected, not silently
// coerced.
func queryLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	if n < minLimit {
		n = minLimit
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

// querySince reads "since" as a Unix-seconds timestamp, returning the
// zero time when absent.
func querySince(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(n, 0), true
}

// queryFloat reads a required float64 query parameter.
func queryFloat(r *http.Request, key string) (float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

func pathSuffix(path, prefix string) (string, bool) {
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return "", false
	}
	suffix := path[len(prefix):]
	if suffix == "" {
		return "", false
	}
	return suffix, true
}
