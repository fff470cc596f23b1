package output

import (
	"fmt"
	"time"
)

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// HumanBytes renders n using binary units, e.g. "1.5 MB".
func HumanBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	value := float64(n) / 1024
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}

var agoSteps = []struct {
	limit time.Duration
	size  time.Duration
	unit  string
}{
	{time.Hour, time.Minute, "min"},
	{24 * time.Hour, time.Hour, "hour"},
	{0, 24 * time.Hour, "day"},
}

// TimeAgo renders the age of t relative to now. A zero time is "unknown".
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	age := now.Sub(t)
	if age < time.Minute {
		return "just now"
	}
	for _, step := range agoSteps {
		if step.limit != 0 && age >= step.limit {
			continue
		}
		n := int(age / step.size)
		if n == 1 {
			return fmt.Sprintf("1 %s ago", step.unit)
		}
		return fmt.Sprintf("%d %ss ago", n, step.unit)
	}
	return "unknown"
}
