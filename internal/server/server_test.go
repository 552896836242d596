package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptoterm/internal/datasync"
	"cryptoterm/internal/freshness"
	"cryptoterm/internal/narratives"
	"cryptoterm/internal/prefetch"
	"cryptoterm/internal/signals"
	"cryptoterm/internal/ws"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *datasync.Client) {
	t.Helper()
	window := freshness.DefaultWindow()
	sync := datasync.New(narratives.KeyPerformance, narratives.NewMockProvider(42), datasync.Options{
		Window: window,
	})
	t.Cleanup(sync.Close)

	s := New(sync, prefetch.NewCache(), signals.NewGenerator(nil, 42), ws.NewManager(), window, "mock")
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return s, srv, sync
}

func waitSynced(t *testing.T, c *datasync.Client) {
	t.Helper()
	c.TriggerBackgroundSync()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Snapshot().Value != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("sync never completed")
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestPerformanceBeforeAndAfterSync(t *testing.T) {
	_, srv, sync := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/narratives/performance", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("no data yet should be 503, got %d", resp.StatusCode)
	}

	waitSynced(t, sync)

	var rows []narratives.Performance
	resp = getJSON(t, srv.URL+"/api/narratives/performance", &rows)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if len(rows) == 0 {
		t.Fatal("expected rows after sync")
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Fatal("API responses must be no-store")
	}
}

func TestWarmCacheFallback(t *testing.T) {
	s, srv, _ := newTestServer(t)
	seed, _ := json.Marshal([]narratives.Performance{
		{Name: "DeFi", Value: 12.5, Change1d: 3.2, Category: "sector"},
	})
	s.Warm.Put(narratives.KeyPerformance, seed, time.Now())

	var rows []narratives.Performance
	resp := getJSON(t, srv.URL+"/api/narratives/performance", &rows)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("warm cache should serve before first sync, got %d", resp.StatusCode)
	}
	if len(rows) != 1 || rows[0].Name != "DeFi" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMoversLimits(t *testing.T) {
	_, srv, sync := newTestServer(t)
	waitSynced(t, sync)

	var rows []narratives.Performance
	getJSON(t, srv.URL+"/api/narratives/top-performers?limit=3", &rows)
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Change1d > rows[i-1].Change1d {
			t.Fatalf("top not sorted descending: %+v", rows)
		}
	}

	getJSON(t, srv.URL+"/api/narratives/worst-performers?limit=3", &rows)
	for i := 1; i < len(rows); i++ {
		if rows[i].Change1d < rows[i-1].Change1d {
			t.Fatalf("worst not sorted ascending: %+v", rows)
		}
	}

	// default limit
	getJSON(t, srv.URL+"/api/narratives/top-performers", &rows)
	if len(rows) != 5 {
		t.Fatalf("default limit should be 5, got %d", len(rows))
	}

	// oversized limit clamps to the universe size (10 mock sectors < 50 cap)
	getJSON(t, srv.URL+"/api/narratives/top-performers?limit=500", &rows)
	if len(rows) != 10 {
		t.Fatalf("clamped limit should return all 10 rows, got %d", len(rows))
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, srv, sync := newTestServer(t)

	var st map[string]any
	getJSON(t, srv.URL+"/api/status", &st)
	if st["age"] != "never" || st["freshness"] != "expired" {
		t.Fatalf("pre-sync status wrong: %v", st)
	}

	waitSynced(t, sync)
	getJSON(t, srv.URL+"/api/status", &st)
	if st["freshness"] != "fresh" {
		t.Fatalf("post-sync status should be fresh: %v", st)
	}
	if st["mode"] != "mock" {
		t.Fatalf("mode should be mock: %v", st)
	}
	if _, ok := st["last_synced_at"]; !ok {
		t.Fatal("last_synced_at missing after sync")
	}
}

func TestManualRefreshThrottled(t *testing.T) {
	_, srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first refresh should run, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second refresh should be throttled, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	secs, _ := body["retry_after_seconds"].(float64)
	if secs <= 0 || secs > 30 {
		t.Fatalf("retry_after_seconds out of range: %v", body)
	}

	// GET is rejected
	getResp := getJSON(t, srv.URL+"/api/refresh", nil)
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET refresh should be 405, got %d", getResp.StatusCode)
	}
}

func TestSignalsEndpoint(t *testing.T) {
	s, srv, _ := newTestServer(t)
	s.Signals.Next()
	s.Signals.Next()

	var sigs []signals.Signal
	getJSON(t, srv.URL+"/api/signals", &sigs)
	if len(sigs) != 2 {
		t.Fatalf("want 2 signals, got %d", len(sigs))
	}
}
