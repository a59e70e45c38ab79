package evaluator

import (
	"fmt"
	"time"
)

// FormatDuration renders d as "42분", "3시간 15분", "3시간", "2일 5시간" or "2일".
// Sub-minute remainders are truncated; negative durations render as "0분".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%d분", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		if rest := minutes % 60; rest > 0 {
			return fmt.Sprintf("%d시간 %d분", hours, rest)
		}
		return fmt.Sprintf("%d시간", hours)
	}

	days := hours / 24
	if rest := hours % 24; rest > 0 {
		return fmt.Sprintf("%d일 %d시간", days, rest)
	}
	return fmt.Sprintf("%d일", days)
}
