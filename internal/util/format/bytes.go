// Package format provides small human-readable formatting helpers.
package format

import (
	"fmt"
	"time"
)

// HumanizeBytes renders a byte count as B/KB/MB/GB/TB with one decimal.
func HumanizeBytes(n int64) string {
	const unit = 1024
	f := float64(n)
	for _, suffix := range []string{"B", "KB", "MB", "GB"} {
		if f < unit {
			return fmt.Sprintf("%.1f %s", f, suffix)
		}
		f /= unit
	}
	return fmt.Sprintf("%.1f TB", f)
}

// Clock renders a duration as HH:MM:SS.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
