// File: internal/freshness/freshness.go
package freshness

import "time"

// State classifies how trustworthy a cached value is at a point in time.
type State int

const (
	// Fresh data is served as-is, no revalidation needed.
	Fresh State = iota
	// Stale data is still served but should be revalidated in the background.
	Stale
	// Expired data (or no data at all) must be refetched.
	Expired
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Window holds the two age thresholds. Invariant: StaleAfter <= ExpireAfter.
type Window struct {
	StaleAfter  time.Duration
	ExpireAfter time.Duration
}

// DefaultWindow matches the production config: stale after 60s, expired after 5m.
func DefaultWindow() Window {
	return Window{StaleAfter: 60 * time.Second, ExpireAfter: 300 * time.Second}
}

// Classify returns the state of a value last synced at lastSyncedAt as seen at now.
// A zero lastSyncedAt means no successful sync ever happened and is always Expired.
// Boundaries are inclusive on the older side: age == StaleAfter is Stale,
// age == ExpireAfter is Expired.
func Classify(lastSyncedAt, now time.Time, w Window) State {
	if lastSyncedAt.IsZero() {
		return Expired
	}
	age := now.Sub(lastSyncedAt)
	switch {
	case age >= w.ExpireAfter:
		return Expired
	case age >= w.StaleAfter:
		return Stale
	default:
		return Fresh
	}
}
