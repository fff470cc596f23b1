package core

import "time"

// AdmissionSnapshot captures the admission limiter occupancy at a point in time.
type AdmissionSnapshot struct {
	MinuteCount   int           `json:"minute_count"`
	DayCount      int           `json:"day_count"`
	PerMinute     int           `json:"per_minute_limit"`
	PerDay        int           `json:"per_day_limit"`
	EstimatedWait time.Duration `json:"estimated_wait_ns"`
	TakenAt       time.Time     `json:"taken_at"`
}
