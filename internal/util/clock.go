package util

import "time"

// Clock abstracts access to wall-clock time so every component that
// reasons about "now" stays deterministic under test.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the production Clock backed by the time package.
type SystemClock struct{}

// NewSystemClock creates the default system-backed clock.
func NewSystemClock() Clock {
	return SystemClock{}
}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep pauses the calling goroutine for the given duration.
func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// StartOfDay returns local midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayKey formats t as a calendar-day key ("2006-01-02") in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
