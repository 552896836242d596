// File: main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cryptoterm/internal/datasync"
	"cryptoterm/internal/fetch"
	"cryptoterm/internal/freshness"
	"cryptoterm/internal/narratives"
	"cryptoterm/internal/prefetch"
	"cryptoterm/internal/server"
	"cryptoterm/internal/signals"
	"cryptoterm/internal/store"
	"cryptoterm/internal/ws"
)

/* ====================
   Config & Inputs
   ==================== */

type AppConfig struct {
	ServerPort int `yaml:"server_port"`
	Upstream   struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"upstream"`
	Sync struct {
		PollSeconds            int `yaml:"poll_seconds"`
		StaleSeconds           int `yaml:"stale_seconds"`
		ExpireSeconds          int `yaml:"expire_seconds"`
		RefreshCooldownSeconds int `yaml:"refresh_cooldown_seconds"`
		MaxRetries             int `yaml:"max_retries"`
	} `yaml:"sync"`
	Signals struct {
		IntervalSeconds int      `yaml:"interval_seconds"`
		Symbols         []string `yaml:"symbols"`
		LogCSV          bool     `yaml:"log_csv"`
	} `yaml:"signals"`
	Persistence struct {
		SnapshotFile string `yaml:"snapshot_file"`
	} `yaml:"persistence"`
	Prefetch struct {
		Limit int `yaml:"limit"`
	} `yaml:"prefetch"`
}

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

/* ====================
   UI messages
   ==================== */

type narrativesMsg struct {
	Type     string          `json:"type"` // "narratives"
	Data     json.RawMessage `json:"data"`
	SyncedAt string          `json:"synced_at"`
}

type signalMsg struct {
	Type   string         `json:"type"` // "signal"
	Signal signals.Signal `json:"signal"`
}

type signalHistoryMsg struct {
	Type    string           `json:"type"` // "signal_history"
	Signals []signals.Signal `json:"signals"`
}

/* ====================
   Static web UI
   ==================== */

// serveStatic wires the static web UI when a web/ directory is present.
func serveStatic(mux *http.ServeMux, webDir string) {
	if st, err := os.Stat(webDir); err != nil || !st.IsDir() {
		return
	}
	abs, _ := filepath.Abs(webDir)
	log.Printf("Serving static from %s", abs)
	// index (no-cache)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
	})
	// assets (cacheable)
	fs := http.FileServer(http.Dir(webDir))
	mux.Handle("/assets/", http.StripPrefix("/assets/", fs))
}

/* ====================
   main
   ==================== */

func main() {
	portOverride := flag.Int("port", 0, "override server_port")
	flag.Parse()

	_ = godotenv.Load(".env")
	upstreamKey := strings.TrimSpace(os.Getenv("UPSTREAM_API_KEY"))

	var cfg AppConfig
	if err := loadYAML("config.yaml", &cfg); err != nil {
		log.Printf("config.yaml not loaded (%v); using defaults", err)
	}
	if cfg.ServerPort == 0 {
		if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
			if v, _ := strconv.Atoi(p); v > 0 {
				cfg.ServerPort = v
			}
		}
		if cfg.ServerPort == 0 {
			cfg.ServerPort = 8090
		}
	}
	if *portOverride != 0 {
		cfg.ServerPort = *portOverride
	}
	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 10
	}
	if cfg.Sync.PollSeconds <= 0 {
		cfg.Sync.PollSeconds = 120
	}
	if cfg.Sync.StaleSeconds <= 0 {
		cfg.Sync.StaleSeconds = 60
	}
	if cfg.Sync.ExpireSeconds <= 0 {
		cfg.Sync.ExpireSeconds = 300
	}
	if cfg.Sync.ExpireSeconds < cfg.Sync.StaleSeconds {
		cfg.Sync.ExpireSeconds = cfg.Sync.StaleSeconds
	}
	if cfg.Sync.RefreshCooldownSeconds <= 0 {
		cfg.Sync.RefreshCooldownSeconds = 30
	}
	if cfg.Sync.MaxRetries <= 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Signals.IntervalSeconds <= 0 {
		cfg.Signals.IntervalSeconds = 45
	}
	if cfg.Prefetch.Limit <= 0 {
		cfg.Prefetch.Limit = 5
	}

	// Data source: upstream API when configured, synthesized data otherwise.
	var fetcher fetch.Fetcher
	mode := "mock"
	if base := strings.TrimSpace(cfg.Upstream.BaseURL); base != "" {
		fetcher = fetch.NewClient(base, upstreamKey, time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second)
		mode = "live"
		log.Printf("[upstream] %s", base)
	} else {
		fetcher = narratives.NewMockProvider(time.Now().UnixNano())
		log.Printf("[upstream] no base_url configured; serving synthesized data")
	}

	// Snapshot store: warm-start seed across restarts.
	var snaps *store.SnapshotStore
	if p := strings.TrimSpace(cfg.Persistence.SnapshotFile); p != "" {
		var err error
		snaps, err = store.Open(p)
		if err != nil {
			log.Printf("[store] disabled: %v", err)
			snaps = nil
		} else {
			defer snaps.Close()
		}
	}

	warm := prefetch.NewCache()
	if snaps != nil {
		if payload, syncedAt, ok, err := snaps.Load(narratives.KeyPerformance); err != nil {
			log.Printf("[store] load: %v", err)
		} else if ok {
			warm.Put(narratives.KeyPerformance, payload, syncedAt)
			log.Printf("[store] seeded %s from snapshot (synced %s)", narratives.KeyPerformance, syncedAt.Format(time.RFC3339))
		}
	}

	hub := ws.NewManager()
	gen := signals.NewGenerator(cfg.Signals.Symbols, time.Now().UnixNano())

	window := freshness.Window{
		StaleAfter:  time.Duration(cfg.Sync.StaleSeconds) * time.Second,
		ExpireAfter: time.Duration(cfg.Sync.ExpireSeconds) * time.Second,
	}
	syncClient := datasync.New(narratives.KeyPerformance, fetcher, datasync.Options{
		Window:          window,
		PollInterval:    time.Duration(cfg.Sync.PollSeconds) * time.Second,
		RefreshCooldown: time.Duration(cfg.Sync.RefreshCooldownSeconds) * time.Second,
		MaxRetries:      cfg.Sync.MaxRetries,
		OnUpdate: func(snap datasync.Snapshot) {
			if snaps != nil {
				if err := snaps.Save(snap.Key, snap.Value, snap.LastSyncedAt); err != nil {
					log.Printf("[store] save %s: %v", snap.Key, err)
				}
			}
			hub.Broadcast(narrativesMsg{
				Type:     "narratives",
				Data:     snap.Value,
				SyncedAt: snap.LastSyncedAt.UTC().Format(time.RFC3339),
			})
		},
	})
	defer syncClient.Close()

	hub.SetGreeter(func() []any {
		var msgs []any
		snap := syncClient.Snapshot()
		data := snap.Value
		syncedAt := snap.LastSyncedAt
		if data == nil {
			if e, ok := warm.Get(narratives.KeyPerformance); ok {
				data, syncedAt = e.Value, e.StoredAt
			}
		}
		if data != nil {
			msgs = append(msgs, narrativesMsg{Type: "narratives", Data: data, SyncedAt: syncedAt.UTC().Format(time.RFC3339)})
		}
		msgs = append(msgs, signalHistoryMsg{Type: "signal_history", Signals: gen.History()})
		return msgs
	})
	hub.SetControlHandler(func(ctrl ws.Control) {
		switch strings.ToLower(ctrl.Action) {
		case "focus":
			syncClient.WakeFocus()
		case "refresh":
			if wait, ok := syncClient.RequestManualRefresh(); !ok {
				hub.Broadcast(ws.Status("warn", fmt.Sprintf("Please wait %ds before refreshing again", int(wait.Seconds()))))
			} else {
				hub.Broadcast(ws.Status("info", "Refreshing"))
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go syncClient.Run(ctx)
	go gen.Run(ctx, time.Duration(cfg.Signals.IntervalSeconds)*time.Second, func(s signals.Signal) {
		hub.Broadcast(signalMsg{Type: "signal", Signal: s})
		if cfg.Signals.LogCSV {
			if err := signals.LogToCSV(s); err != nil {
				log.Printf("[signals] csv: %v", err)
			}
		}
	})

	// Warm auxiliary resources opportunistically at startup.
	co := prefetch.New(fetcher, warm, cfg.Prefetch.Limit)
	go co.Warm(ctx, []string{
		narratives.KeyTopPerformers(cfg.Prefetch.Limit),
		narratives.KeyWorstPerformers(cfg.Prefetch.Limit),
	})

	api := server.New(syncClient, warm, gen, hub, window, mode)
	mux := api.Routes()
	serveStatic(mux, "web")

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("UI: http://localhost:%d (mode: %s)", cfg.ServerPort, mode)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server: %v", err)
	}
}
