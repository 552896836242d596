// File: internal/format/format.go
package format

import (
	"fmt"
	"math"
	"time"
)

// TimeAgo renders a duration since the last sync for the status line:
// "12s ago", "4m 12s ago", "2h 5m ago". Negative durations clamp to "0s ago".
func TimeAgo(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds ago", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm ago", secs/3600, (secs%3600)/60)
	}
}

// Percent renders a signed percentage with two decimals: "+12.50%", "-3.20%".
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// USD renders a dollar amount compactly: "$1.23B", "$45.60M", "$912.00".
func USD(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%s$%.2fT", sign, v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%s$%.2fB", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s$%.2fM", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s$%.2fK", sign, v/1e3)
	default:
		return fmt.Sprintf("%s$%.2f", sign, v)
	}
}

// Price renders an asset price with precision scaled to magnitude, the way
// the terminal's quote panels do (sub-dollar assets get more decimals).
func Price(v float64) string {
	av := math.Abs(v)
	switch {
	case av >= 1000:
		return fmt.Sprintf("%.0f", v)
	case av >= 1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}
