// File: internal/signals/signals.go
package signals

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is a placeholder trading signal. Values are random by design; the
// generator exists so the dashboard's signal panel has something to render.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // 0.50–0.99
	Price      float64   `json:"price"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Generator emits random signals over a fixed symbol universe, random-walking
// a per-symbol price so consecutive signals look plausible. It keeps a bounded
// history for late-joining WebSocket clients.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	symbols []string
	prices  map[string]float64
	history []Signal
	limit   int
}

var defaultSeedPrices = map[string]float64{
	"BTC": 64000, "ETH": 3100, "SOL": 145, "AVAX": 27, "LINK": 14,
}

func NewGenerator(symbols []string, seed int64) *Generator {
	if len(symbols) == 0 {
		symbols = []string{"BTC", "ETH", "SOL", "AVAX", "LINK"}
	}
	g := &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		symbols: symbols,
		prices:  make(map[string]float64, len(symbols)),
		limit:   200,
	}
	for _, s := range symbols {
		p, ok := defaultSeedPrices[s]
		if !ok {
			p = 10 + g.rng.Float64()*990
		}
		g.prices[s] = p
	}
	return g
}

// Next produces one signal and records it in the history ring.
func (g *Generator) Next() Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	sym := g.symbols[g.rng.Intn(len(g.symbols))]
	price := g.prices[sym]
	price += price * (g.rng.Float64() - 0.5) / 50 // ±1% walk
	g.prices[sym] = price

	var action Action
	switch n := g.rng.Intn(10); {
	case n < 4:
		action = ActionBuy
	case n < 8:
		action = ActionSell
	default:
		action = ActionHold
	}

	s := Signal{
		Symbol:     sym,
		Action:     action,
		Confidence: 0.5 + g.rng.Float64()*0.49,
		Price:      price,
		IssuedAt:   time.Now(),
	}
	g.history = append(g.history, s)
	if len(g.history) > g.limit {
		g.history = g.history[len(g.history)-g.limit:]
	}
	return s
}

// History returns a copy of the recent signals, oldest first.
func (g *Generator) History() []Signal {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Signal, len(g.history))
	copy(out, g.history)
	return out
}

// Run emits a signal every interval until ctx is done.
func (g *Generator) Run(ctx context.Context, interval time.Duration, emit func(Signal)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit(g.Next())
		}
	}
}
