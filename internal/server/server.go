// File: internal/server/server.go
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cryptoterm/internal/datasync"
	"cryptoterm/internal/format"
	"cryptoterm/internal/freshness"
	"cryptoterm/internal/narratives"
	"cryptoterm/internal/prefetch"
	"cryptoterm/internal/signals"
	"cryptoterm/internal/ws"
)

const (
	defaultLimit = 5
	maxLimit     = 50
)

// Server wires the sync client, warm cache, signal generator and WebSocket
// manager into the dashboard's REST surface.
type Server struct {
	Sync    *datasync.Client
	Warm    *prefetch.Cache
	Signals *signals.Generator
	Hub     *ws.Manager
	Window  freshness.Window
	Mode    string // "live" or "mock"

	started time.Time
}

func New(sync *datasync.Client, warm *prefetch.Cache, gen *signals.Generator, hub *ws.Manager, window freshness.Window, mode string) *Server {
	return &Server{
		Sync:    sync,
		Warm:    warm,
		Signals: gen,
		Hub:     hub,
		Window:  window,
		Mode:    mode,
		started: time.Now(),
	}
}

// Routes registers the API and WebSocket handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/narratives/performance", s.handlePerformance)
	mux.HandleFunc("/api/narratives/top-performers", s.handleMovers(narratives.TopPerformers))
	mux.HandleFunc("/api/narratives/worst-performers", s.handleMovers(narratives.WorstPerformers))
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/ws", s.Hub.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rows returns the best available performance records: the sync client's
// cached value first, the warm cache as a pre-first-sync fallback.
func (s *Server) rows() ([]narratives.Performance, bool) {
	snap := s.Sync.Snapshot()
	raw := snap.Value
	if raw == nil {
		if e, ok := s.Warm.Get(narratives.KeyPerformance); ok {
			raw = e.Value
		}
	}
	if raw == nil {
		return nil, false
	}
	rows, err := narratives.Decode(raw)
	if err != nil {
		return nil, false
	}
	return rows, true
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.rows()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "no data yet"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMovers(pick func([]narratives.Performance, int) []narratives.Performance) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		rows, ok := s.rows()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "no data yet"})
			return
		}
		writeJSON(w, http.StatusOK, pick(rows, limit))
	}
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Signals.History())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sync.Snapshot()
	out := map[string]any{
		"mode":           s.Mode,
		"loading":        snap.Loading,
		"freshness":      freshness.Classify(snap.LastSyncedAt, time.Now(), s.Window).String(),
		"ws_clients":     s.Hub.Count(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if age, ok := s.Sync.TimeSinceLastSync(); ok {
		out["last_synced_at"] = snap.LastSyncedAt.UTC().Format(time.RFC3339)
		out["age"] = format.TimeAgo(age)
	} else {
		out["age"] = "never"
	}
	if snap.Err != nil {
		out["error"] = snap.Err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	wait, ok := s.Sync.RequestManualRefresh()
	if !ok {
		secs := int(wait.Seconds())
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"ok":                  false,
			"retry_after_seconds": secs,
			"status":              "please wait " + strconv.Itoa(secs) + "s",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "Refreshing"})
}
