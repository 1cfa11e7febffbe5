// Package api provides the HTTP API for observing the trade simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/engine"
)

const maxSSEConns = 2

// Snapshotter persists the full world state on demand.
type Snapshotter interface {
	SaveWorldState(sim *engine.Simulation) error
}

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       Snapshotter         // nil disables POST /snapshot
	Gatherer prometheus.Gatherer // nil disables /metrics
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey string // Bearer token for SSE stream endpoint. Empty = streaming disabled.

	// Active SSE connection count (atomic).
	sseConns int32
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	detailLimiter := NewRateLimiter(120, time.Minute)

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Public endpoints (GET, read-only).
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet)
	v1.HandleFunc("/agent/{id:[0-9]+}", RateLimitMiddleware(detailLimiter, s.handleAgentDetail)).Methods(http.MethodGet)
	v1.HandleFunc("/societies", s.handleSocieties).Methods(http.MethodGet)
	v1.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet)
	v1.HandleFunc("/queues", s.handleQueues).Methods(http.MethodGet)
	v1.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)

	// SSE streaming endpoint (GET, requires relay bearer token).
	v1.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	// Admin endpoints (require bearer token on POST).
	v1.HandleFunc("/speed", s.adminOnly(s.handleSpeed)).Methods(http.MethodGet, http.MethodPost)
	v1.HandleFunc("/snapshot", s.adminOnly(s.handleSnapshot)).Methods(http.MethodPost)

	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return corsMiddleware(r)
}

// Start serves the HTTP API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerMatches reports whether the request carries the given bearer token.
func bearerMatches(r *http.Request, key string) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == key
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !bearerMatches(r, s.AdminKey) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Sim.View(func() {
		status = map[string]any{
			"name":      "worldsim",
			"tick":      s.Sim.LastTick,
			"sim_time":  engine.SimTime(s.Sim.Now),
			"alive":     s.Sim.Stats.Alive,
			"intents":   s.Sim.Stats.Intents,
			"societies": len(s.Sim.Societies),
			"locations": len(s.Sim.Locations.All()),
			"successes": s.Sim.Stats.Successes,
			"failures":  s.Sim.Stats.Failures,
			"weather":   s.Sim.Climate,
		}
	})
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats engine.TradeStats
	s.Sim.View(func() {
		stats = s.Sim.Stats
		stats.Stages = copyMap(s.Sim.Stats.Stages)
		stats.ByReason = copyMap(s.Sim.Stats.ByReason)
	})
	writeJSON(w, stats)
}

type agentSummary struct {
	ID        agents.AgentID    `json:"id"`
	Name      string            `json:"name"`
	Society   agents.SocietyID  `json:"society,omitempty"`
	Location  agents.LocationID `json:"location,omitempty"`
	Stage     string            `json:"stage"`
	Provider  string            `json:"provider,omitempty"`
	Need      agents.NeedID     `json:"need,omitempty"`
	Intents   int               `json:"intents"`
	Inventory agents.Inventory  `json:"inventory"`
}

// handleAgents lists agents, optionally filtered by ?stage= and ?society=.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	var society uint64
	if raw := r.URL.Query().Get("society"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid society", http.StatusBadRequest)
			return
		}
		society = n
	}

	result := []agentSummary{}
	s.Sim.View(func() {
		for _, a := range s.Sim.Agents {
			if !a.Alive {
				continue
			}
			if stage != "" && a.Request.Stage.String() != stage {
				continue
			}
			if society != 0 && uint64(a.SocietyID) != society {
				continue
			}
			sum := agentSummary{
				ID:        a.ID,
				Name:      a.Name,
				Society:   a.SocietyID,
				Location:  a.Location,
				Stage:     a.Request.Stage.String(),
				Need:      a.Request.NeedID,
				Intents:   len(a.Intents),
				Inventory: a.Inventory.Clone(),
			}
			if a.Request.Active() {
				sum.Provider = a.Request.Provider.String()
			}
			result = append(result, sum)
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	var body []byte
	found := false
	s.Sim.View(func() {
		a, ok := s.Sim.AgentIndex[agents.AgentID(id)]
		if !ok {
			return
		}
		found = true
		body, err = json.MarshalIndent(a, "", "  ")
	})
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleSocieties(w http.ResponseWriter, r *http.Request) {
	type societySummary struct {
		ID           agents.SocietyID  `json:"id"`
		Name         string            `json:"name"`
		Members      int               `json:"members"`
		Pool         agents.Inventory  `json:"pool"`
		PoolLocation agents.LocationID `json:"pool_location,omitempty"`
		NextTick     string            `json:"next_tick"`
	}
	result := []societySummary{}
	s.Sim.View(func() {
		for _, soc := range s.Sim.Societies {
			result = append(result, societySummary{
				ID:           soc.ID,
				Name:         soc.Name,
				Members:      len(soc.Members),
				Pool:         soc.Pool.Clone(),
				PoolLocation: soc.PoolLocation,
				NextTick:     engine.SimTime(soc.NextTick),
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	type locationSummary struct {
		ID         agents.LocationID `json:"id"`
		Q          int               `json:"q"`
		R          int               `json:"r"`
		QueueSlots int               `json:"queue_slots"`
		Present    int               `json:"present"`
	}
	result := []locationSummary{}
	s.Sim.View(func() {
		present := make(map[agents.LocationID]int)
		for _, a := range s.Sim.Agents {
			if a.Alive && a.Location != "" {
				present[a.Location]++
			}
		}
		for _, l := range s.Sim.Locations.All() {
			result = append(result, locationSummary{
				ID:         l.ID,
				Q:          l.Anchor.Q,
				R:          l.Anchor.R,
				QueueSlots: l.QueueSlots,
				Present:    present[l.ID],
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	var views []engine.QueueView
	s.Sim.View(func() {
		views = s.Sim.Queues.Snapshot()
	})
	writeJSON(w, views)
}

// handleSignals returns recent signals; ?limit= caps the count (default 100).
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, s.Sim.RecentSignals(limit))
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Auth check uses the relay key, not the admin key.
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if !bearerMatches(r, s.RelayKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Connection limit.
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.Sim.Subscribe(64)
	defer unsubscribe()

	// Send recent signals as catch-up.
	for _, sig := range s.Sim.RecentSignals(50) {
		writeSSESignal(w, sig)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "remote", clientIP(r))

	// Stream loop with heartbeat.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return
			}
			writeSSESignal(w, sig)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "remote", clientIP(r))
			return
		}
	}
}

// writeSSESignal writes a single signal in SSE format.
func writeSSESignal(w http.ResponseWriter, sig engine.Signal) {
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", sig.Seq, sig.ID, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
