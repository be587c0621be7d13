// Package httpapi serves meshforged's JSON/GeoJSON/CSV API and static
// map page from a single HTTP server, reading from the aggregator's
// read models (node store, history, state, drift, alert, analytics,
// perf) through their public accessors only.
package httpapi

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/meshforge/meshforge-maps/pkg/aggregator"
	"github.com/meshforge/meshforge-maps/pkg/alert"
	"github.com/meshforge/meshforge-maps/pkg/analytics"
	"github.com/meshforge/meshforge-maps/pkg/breaker"
	"github.com/meshforge/meshforge-maps/pkg/config"
	"github.com/meshforge/meshforge-maps/pkg/drift"
	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/history"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/mqttclient"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
	"github.com/meshforge/meshforge-maps/pkg/perf"
	"github.com/meshforge/meshforge-maps/pkg/state"
	"github.com/meshforge/meshforge-maps/pkg/wsbroadcast"
)

// maxPortFallback is how many adjacent ports Start tries before giving
// up, matching the port-bind error-handling rule.
const maxPortFallback = 5

// Server holds every read model the API surfaces and the process-wide
// settings it reports back (redacted) from /api/config.
type Server struct {
	Store      *nodestore.Store
	Aggregator *aggregator.Aggregator
	History    *history.Store
	State      *state.Machine
	Drift      *drift.Detector
	Alerts     *alert.Engine
	Analytics  *analytics.Analytics
	Perf       *perf.Recorder
	Bus        *events.Bus
	Breakers   *breaker.Registry
	MQTT       *mqttclient.Client
	WS         *wsbroadcast.Hub // nil when the broadcaster is disabled
	Settings   config.Settings
	Log        *logx.Logger
	startTime  time.Time

	server *http.Server
	mux    *http.ServeMux
	port   int

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// requestsPerSecond and requestBurst bound each remote address to a
// sustained rate with a short burst allowance, so one misbehaving
// client can't starve the server's goroutines the way an unbounded
// API would.
const (
	requestsPerSecond = 20
	requestBurst      = 40
)

// NewServer wires a Server; any read model may be left nil and its
// routes will report a 503 rather than panic.
func NewServer(log *logx.Logger) *Server {
	return &Server{Log: log, startTime: time.Now(), limiters: make(map[string]*rate.Limiter)}
}

// limiterFor returns the rate limiter tracking addr, creating one on
// first use.
func (s *Server) limiterFor(addr string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[addr]
	if !ok {
		l = rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst)
		s.limiters[addr] = l
	}
	return l
}

// Start binds the server to settings.HTTP.Host:Port, trying up to
// maxPortFallback adjacent ports if the configured one is taken, and
// begins serving in the background. The port actually bound is
// returned.
func (s *Server) Start() (int, error) {
	s.mux = http.NewServeMux()
	s.routes()

	basePort := s.Settings.HTTP.Port
	var lastErr error
	for offset := 0; offset <= maxPortFallback; offset++ {
		port := basePort + offset
		addr := fmt.Sprintf("%s:%d", s.Settings.HTTP.Host, port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.port = port
		s.server = &http.Server{Handler: s.withMiddleware(s.mux)}
		go func() {
			if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
				if s.Log != nil {
					s.Log.Error("http server error", "error", err.Error())
				}
			}
		}()
		if s.Log != nil {
			s.Log.Info("http api listening", "addr", addr)
		}
		return port, nil
	}
	return 0, fmt.Errorf("bind http api after %d attempts starting at port %d: %w", maxPortFallback+1, basePort, lastErr)
}

// Stop gracefully shuts the server down, joining the accept loop with a
// 5-second deadline.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Port returns the port actually bound by Start (may differ from
// settings.HTTP.Port after fallback).
func (s *Server) Port() int { return s.port }

// withMiddleware wraps h with the universal response policy: security
// headers, CORS (only when configured), and the X-MeshForge-Key
// authentication check for every /api/* path.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Server", "MeshForge-Maps/1.0")

		if isAPIPath(r.URL.Path) && !s.limiterFor(remoteAddr(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if len(s.Settings.HTTP.CORSOrigin) > 0 {
			for _, origin := range s.Settings.HTTP.CORSOrigin {
				if origin == r.Header.Get("Origin") {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		if isAPIPath(r.URL.Path) && !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		h.ServeHTTP(w, r)
	})
}

func isAPIPath(path string) bool {
	return len(path) >= 5 && path[:5] == "/api/"
}

// remoteAddr extracts the client IP, stripping the port RemoteAddr
// carries, so NAT'd clients sharing a port range still bucket by host.
func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authorized reports whether r carries the configured API key. When no
// key is configured, every request is authorized (auth is opt-in).
func (s *Server) authorized(r *http.Request) bool {
	key := s.Settings.HTTP.APIKey
	if key == "" {
		return true
	}
	got := r.Header.Get("X-MeshForge-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}
