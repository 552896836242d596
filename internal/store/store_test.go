package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	at := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`[{"name":"DeFi","value":12.5,"category":"sector"}]`)
	if err := s.Save("narratives/performance", payload, at); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, syncedAt, ok, err := s.Load("narratives/performance")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %s", got)
	}
	if !syncedAt.Equal(at) {
		t.Fatalf("syncedAt mismatch: %v", syncedAt)
	}
}

func TestLoadMissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	_, _, ok, err := s.Load("nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("missing key should report ok=false")
	}
}

func TestSaveOverwrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Save("k", json.RawMessage(`[1]`), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Save("k", json.RawMessage(`[2]`), time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _, ok, _ := s.Load("k")
	if !ok || string(got) != "[2]" {
		t.Fatalf("want [2], got %s ok=%v", got, ok)
	}
}
