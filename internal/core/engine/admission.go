package engine

import (
	"sync"
	"time"

	"github.com/portraitforge/portraitforge/internal/core"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// AdmissionLimiter is a process-local dual sliding-window request gate.
//
// A single instance is constructed at startup and shared by every orchestrator run.
// The mutex is held only for purge, check and record; never across I/O or sleeps.
type AdmissionLimiter struct {
	Clock func() time.Time

	mu     sync.Mutex
	minute window
	day    window
}

// NewAdmissionLimiter returns an empty limiter.
func NewAdmissionLimiter() *AdmissionLimiter {
	return &AdmissionLimiter{}
}

// TryAcquire records one admission in both windows if both limits have room.
// A limit of 0 (or less) disables that dimension. Nothing is recorded on denial.
func (l *AdmissionLimiter) TryAcquire(perMinute, perDay int) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute.purge(now, minuteWindow)
	l.day.purge(now, dayWindow)

	if perMinute > 0 && l.minute.len() >= perMinute {
		return false
	}
	if perDay > 0 && l.day.len() >= perDay {
		return false
	}

	l.minute.push(now)
	l.day.push(now)
	return true
}

// EstimatedWait returns how long until the oldest minute-window entry expires, or 0
// when the window is under the limit. Advisory only; it may be stale immediately.
func (l *AdmissionLimiter) EstimatedWait(perMinute int) time.Duration {
	if l == nil || perMinute <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute.purge(now, minuteWindow)
	if l.minute.len() < perMinute {
		return 0
	}

	wait := l.minute.oldest().Add(minuteWindow).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// CurrentMinuteCount returns the minute window occupancy without purging.
func (l *AdmissionLimiter) CurrentMinuteCount() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minute.len()
}

// CurrentDayCount returns the day window occupancy without purging.
func (l *AdmissionLimiter) CurrentDayCount() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.day.len()
}

// Snapshot purges both windows and reports their occupancy against the given limits.
func (l *AdmissionLimiter) Snapshot(perMinute, perDay int) core.AdmissionSnapshot {
	snapshot := core.AdmissionSnapshot{PerMinute: perMinute, PerDay: perDay}
	if l == nil {
		snapshot.TakenAt = time.Now().UTC()
		return snapshot
	}

	l.mu.Lock()
	now := l.now()
	l.minute.purge(now, minuteWindow)
	l.day.purge(now, dayWindow)
	snapshot.MinuteCount = l.minute.len()
	snapshot.DayCount = l.day.len()
	if perMinute > 0 && snapshot.MinuteCount >= perMinute {
		if wait := l.minute.oldest().Add(minuteWindow).Sub(now); wait > 0 {
			snapshot.EstimatedWait = wait
		}
	}
	l.mu.Unlock()

	snapshot.TakenAt = now.UTC()
	return snapshot
}

// Reset clears all admissions.
func (l *AdmissionLimiter) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minute = window{}
	l.day = window{}
}

// now must be called with mu held; it clamps to the newest entry so windows stay ordered.
func (l *AdmissionLimiter) now() time.Time {
	now := time.Now()
	if l.Clock != nil {
		now = l.Clock()
	}
	if newest, ok := l.day.newest(); ok && now.Before(newest) {
		return newest
	}
	return now
}

// window is a FIFO of admission timestamps in non-decreasing order.
type window struct {
	entries []time.Time
	head    int
}

func (w *window) len() int {
	return len(w.entries) - w.head
}

func (w *window) push(t time.Time) {
	w.entries = append(w.entries, t)
}

func (w *window) oldest() time.Time {
	return w.entries[w.head]
}

func (w *window) newest() (time.Time, bool) {
	if w.len() == 0 {
		return time.Time{}, false
	}
	return w.entries[len(w.entries)-1], true
}

// purge drops entries whose age has reached span.
func (w *window) purge(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	for w.head < len(w.entries) && !w.entries[w.head].After(cutoff) {
		w.head++
	}

	switch {
	case w.head == len(w.entries):
		w.entries = w.entries[:0]
		w.head = 0
	case w.head > 64 && w.head*2 > len(w.entries):
		n := copy(w.entries, w.entries[w.head:])
		w.entries = w.entries[:n]
		w.head = 0
	}
}
