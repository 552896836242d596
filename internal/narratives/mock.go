// File: internal/narratives/mock.go
package narratives

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"

	"cryptoterm/internal/fetch"
)

// seed sectors roughly matching the dashboard's default universe.
var mockSectors = []Performance{
	{Name: "DeFi", Value: 12.5, Category: "sector"},
	{Name: "Layer 2", Value: 8.3, Category: "sector"},
	{Name: "Gaming", Value: 4.1, Category: "sector"},
	{Name: "Infrastructure", Value: 6.7, Category: "sector"},
	{Name: "Privacy", Value: 2.9, Category: "sector"},
	{Name: "AI Agents", Value: 21.4, Category: "narrative"},
	{Name: "Memecoins", Value: 15.8, Category: "narrative"},
	{Name: "RWA", Value: 9.2, Category: "narrative"},
	{Name: "DePIN", Value: 7.6, Category: "narrative"},
	{Name: "Liquid Staking", Value: 5.4, Category: "narrative"},
}

// MockProvider synthesizes narrative performance data when no upstream is
// configured. It implements fetch.Fetcher so the sync client, prefetcher and
// HTTP handlers are indifferent to where data comes from. Each fetch applies
// a small bounded drift so the dashboard visibly moves.
type MockProvider struct {
	mu   sync.Mutex
	rng  *rand.Rand
	rows []Performance
}

func NewMockProvider(seed int64) *MockProvider {
	rows := make([]Performance, len(mockSectors))
	copy(rows, mockSectors)
	return &MockProvider{rng: rand.New(rand.NewSource(seed)), rows: rows}
}

func (p *MockProvider) Fetch(ctx context.Context, key string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fetch.TransportError{Err: err}
	}

	p.mu.Lock()
	p.drift()
	rows := make([]Performance, len(p.rows))
	copy(rows, p.rows)
	p.mu.Unlock()

	path, limit := parseKey(key)
	if limit <= 0 {
		limit = 5
	}
	switch path {
	case "narratives/performance":
		// full list
	case "narratives/top-performers":
		rows = TopPerformers(rows, limit)
	case "narratives/worst-performers":
		rows = WorstPerformers(rows, limit)
	default:
		return nil, &fetch.HTTPError{Status: http.StatusNotFound, StatusText: http.StatusText(http.StatusNotFound)}
	}
	return json.Marshal(rows)
}

// drift nudges every row: value random-walks a few percent, 1d change moves
// with it, 7d/30d trail slowly.
func (p *MockProvider) drift() {
	for i := range p.rows {
		r := &p.rows[i]
		step := (p.rng.Float64() - 0.5) * 2.0 // [-1, 1)
		r.Change1d += step
		if r.Change1d > 40 {
			r.Change1d = 40
		}
		if r.Change1d < -40 {
			r.Change1d = -40
		}
		r.Value += r.Value * step / 100
		if r.Value < 0.1 {
			r.Value = 0.1
		}
		r.Change7d += step / 4
		r.Change30d += step / 10
	}
}
