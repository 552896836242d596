package freshness

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	w := Window{StaleAfter: 60 * time.Second, ExpireAfter: 300 * time.Second}
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		age  time.Duration
		want State
	}{
		{"just synced", 0, Fresh},
		{"well inside fresh", 30 * time.Second, Fresh},
		{"one tick before stale", 60*time.Second - time.Nanosecond, Fresh},
		{"exactly stale boundary", 60 * time.Second, Stale},
		{"mid stale", 200 * time.Second, Stale},
		{"one tick before expired", 300*time.Second - time.Nanosecond, Stale},
		{"exactly expire boundary", 300 * time.Second, Expired},
		{"long expired", time.Hour, Expired},
	}
	for _, tc := range cases {
		got := Classify(now.Add(-tc.age), now, w)
		if got != tc.want {
			t.Errorf("%s: age %v: want %v, got %v", tc.name, tc.age, tc.want, got)
		}
	}
}

func TestClassifyNeverSynced(t *testing.T) {
	if got := Classify(time.Time{}, time.Now(), DefaultWindow()); got != Expired {
		t.Fatalf("zero lastSyncedAt should be Expired, got %v", got)
	}
}

func TestStateString(t *testing.T) {
	if Fresh.String() != "fresh" || Stale.String() != "stale" || Expired.String() != "expired" {
		t.Fatal("unexpected state strings")
	}
	if State(42).String() != "unknown" {
		t.Fatal("out-of-range state should stringify as unknown")
	}
}
