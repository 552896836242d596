package signals

import (
	"testing"
)

func TestNextProducesValidSignals(t *testing.T) {
	g := NewGenerator([]string{"BTC", "ETH"}, 1)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := g.Next()
		seen[s.Symbol] = true
		switch s.Action {
		case ActionBuy, ActionSell, ActionHold:
		default:
			t.Fatalf("unexpected action %q", s.Action)
		}
		if s.Confidence < 0.5 || s.Confidence > 0.99 {
			t.Fatalf("confidence out of range: %v", s.Confidence)
		}
		if s.Price <= 0 {
			t.Fatalf("price must stay positive: %v", s.Price)
		}
		if s.IssuedAt.IsZero() {
			t.Fatal("issued_at must be set")
		}
	}
	if !seen["BTC"] || !seen["ETH"] {
		t.Fatalf("both symbols should appear over 100 draws: %v", seen)
	}
}

func TestHistoryBounded(t *testing.T) {
	g := NewGenerator(nil, 2)
	for i := 0; i < 250; i++ {
		g.Next()
	}
	h := g.History()
	if len(h) != 200 {
		t.Fatalf("history should cap at 200, got %d", len(h))
	}
	// copies, not aliases
	h[0].Symbol = "MUTATED"
	if g.History()[0].Symbol == "MUTATED" {
		t.Fatal("History must return a copy")
	}
}
