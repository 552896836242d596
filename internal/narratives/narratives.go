// File: internal/narratives/narratives.go
package narratives

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Performance is one narrative/sector performance record as served by the
// upstream API and by this server's own endpoints.
type Performance struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Change1d  float64 `json:"change1d,omitempty"`
	Change7d  float64 `json:"change7d,omitempty"`
	Change30d float64 `json:"change30d,omitempty"`
	Category  string  `json:"category"`
}

// KeyPerformance is the primary resource every dashboard view hangs off.
const KeyPerformance = "narratives/performance"

// KeyTopPerformers returns the resource key for the N best 1-day movers.
func KeyTopPerformers(limit int) string {
	return fmt.Sprintf("narratives/top-performers?limit=%d", limit)
}

// KeyWorstPerformers returns the resource key for the N worst 1-day movers.
func KeyWorstPerformers(limit int) string {
	return fmt.Sprintf("narratives/worst-performers?limit=%d", limit)
}

// Decode parses a raw payload into performance records.
func Decode(raw json.RawMessage) ([]Performance, error) {
	var rows []Performance
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode narratives: %w", err)
	}
	return rows, nil
}

// TopPerformers returns up to limit records sorted by 1-day change, best
// first. The input slice is not modified.
func TopPerformers(rows []Performance, limit int) []Performance {
	return sortedByChange1d(rows, limit, func(a, b Performance) bool {
		return a.Change1d > b.Change1d
	})
}

// WorstPerformers returns up to limit records sorted by 1-day change, worst
// first. The input slice is not modified.
func WorstPerformers(rows []Performance, limit int) []Performance {
	return sortedByChange1d(rows, limit, func(a, b Performance) bool {
		return a.Change1d < b.Change1d
	})
}

func sortedByChange1d(rows []Performance, limit int, less func(a, b Performance) bool) []Performance {
	out := make([]Performance, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// parseKey splits a resource key into its path and the limit query parameter
// (0 when absent or malformed).
func parseKey(key string) (path string, limit int) {
	path = key
	if i := strings.IndexByte(key, '?'); i >= 0 {
		path = key[:i]
		for _, kv := range strings.Split(key[i+1:], "&") {
			if v, ok := strings.CutPrefix(kv, "limit="); ok {
				if n, err := strconv.Atoi(v); err == nil {
					limit = n
				}
			}
		}
	}
	return path, limit
}
