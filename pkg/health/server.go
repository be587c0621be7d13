package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/breaker"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/mqttclient"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
)

// Server exposes liveness/readiness endpoints reporting on meshforged's
// own operational health, distinct from the per-node Score computed
// above: this is "is the service itself working", not "is this mesh
// node healthy".
type Server struct {
	store     *nodestore.Store
	breakers  *breaker.Registry
	mqtt      *mqttclient.Client
	logger    *logx.Logger
	server    *http.Server
	startTime time.Time

	mu        sync.Mutex
	lastError *ErrorInfo
}

// ServiceStatus represents the overall health status of the service.
type ServiceStatus struct {
	Status     string                   `json:"status"`
	Timestamp  time.Time                `json:"timestamp"`
	Uptime     time.Duration            `json:"uptime"`
	Version    string                   `json:"version"`
	Components map[string]Component     `json:"components"`
	Sources    map[string]breaker.Stats `json:"sources,omitempty"`
	Statistics Statistics               `json:"statistics,omitempty"`
	Memory     MemoryInfo               `json:"memory,omitempty"`
	LastError  *ErrorInfo               `json:"last_error,omitempty"`
}

// Component represents the health of a single subsystem.
type Component struct {
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Uptime    time.Duration `json:"uptime"`
}

// Statistics represents service-level counters.
type Statistics struct {
	TotalNodes   int `json:"total_nodes"`
	TotalLinks   int `json:"total_links"`
	OpenBreakers int `json:"open_breakers"`
}

// MemoryInfo represents Go runtime memory usage.
type MemoryInfo struct {
	Alloc     uint64 `json:"alloc_bytes"`
	Sys       uint64 `json:"sys_bytes"`
	HeapAlloc uint64 `json:"heap_alloc_bytes"`
	HeapSys   uint64 `json:"heap_sys_bytes"`
	HeapIdle  uint64 `json:"heap_idle_bytes"`
	HeapInuse uint64 `json:"heap_inuse_bytes"`
	NumGC     uint32 `json:"num_gc"`
	PauseNs   uint64 `json:"pause_ns"`
}

// ErrorInfo records the most recent error reported via RecordError.
type ErrorInfo struct {
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
}

// NewServer creates a health Server bound to the service's store, breaker
// registry, and MQTT client.
func NewServer(store *nodestore.Store, breakers *breaker.Registry, mqtt *mqttclient.Client, logger *logx.Logger) *Server {
	return &Server{
		store:     store,
		breakers:  breakers,
		mqtt:      mqtt,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Start begins serving /health, /health/detailed, /health/ready, and
// /health/live on port.
func (s *Server) Start(port int) error {
	s.logger.Info("starting health server", "port", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/health/detailed", s.detailedHealthHandler)
	mux.HandleFunc("/health/ready", s.readyHandler)
	mux.HandleFunc("/health/live", s.liveHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server error", "error", err.Error())
		}
	}()

	return nil
}

// Stop gracefully shuts down the health server.
func (s *Server) Stop() error {
	s.logger.Info("stopping health server")
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.getStatus()
	w.Header().Set("Content-Type", "application/json")
	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

func (s *Server) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.getDetailedStatus()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	status := s.getStatus()
	w.Header().Set("Content-Type", "application/json")
	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
	}
}

func (s *Server) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

// getStatus always reports the node store as healthy and reports MQTT as
// unhealthy while the client is disconnected; breaker state is not
// consulted.
func (s *Server) getStatus() ServiceStatus {
	components := map[string]Component{
		"node_store": {Status: "healthy", Message: "node store operational", LastCheck: time.Now(), Uptime: time.Since(s.startTime)},
	}

	mqttStatus := "healthy"
	mqttMessage := "mqtt client operational"
	if s.mqtt != nil && !s.mqtt.Connected() {
		mqttStatus = "unhealthy"
		mqttMessage = "mqtt client not connected"
	}
	components["mqtt"] = Component{Status: mqttStatus, Message: mqttMessage, LastCheck: time.Now(), Uptime: time.Since(s.startTime)}

	overall := "healthy"
	for _, c := range components {
		if c.Status != "healthy" {
			overall = "unhealthy"
			break
		}
	}

	return ServiceStatus{
		Status:     overall,
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startTime),
		Version:    "1.0.0",
		Components: components,
	}
}

func (s *Server) getDetailedStatus() ServiceStatus {
	status := s.getStatus()
	if s.breakers != nil {
		status.Sources = s.breakers.All()
	}
	status.Statistics = s.getStatistics()
	status.Memory = s.getMemoryInfo()
	status.LastError = s.getLastError()
	return status
}

func (s *Server) getStatistics() Statistics {
	stats := Statistics{}
	if s.store != nil {
		stats.TotalNodes = s.store.Len()
		stats.TotalLinks = len(s.store.AllLinks())
	}
	if s.breakers != nil {
		for _, stat := range s.breakers.All() {
			if stat.State == breaker.Open {
				stats.OpenBreakers++
			}
		}
	}
	return stats
}

func (s *Server) getMemoryInfo() MemoryInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryInfo{
		Alloc:     m.Alloc,
		Sys:       m.Sys,
		HeapAlloc: m.HeapAlloc,
		HeapSys:   m.HeapSys,
		HeapIdle:  m.HeapIdle,
		HeapInuse: m.HeapInuse,
		NumGC:     m.NumGC,
		PauseNs:   m.PauseNs[(m.NumGC+255)%256],
	}
}

func (s *Server) getLastError() *ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// RecordError records the most recent error for surfacing in the
// detailed health report.
func (s *Server) RecordError(errorType, component, message string) {
	s.mu.Lock()
	s.lastError = &ErrorInfo{Message: message, Type: errorType, Component: component, Timestamp: time.Now()}
	s.mu.Unlock()
	s.logger.Error("health error recorded", "type", errorType, "component", component, "message", message)
}
