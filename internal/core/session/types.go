package session

import (
	"time"

	"github.com/penwyp/go-claude-usage/internal/core/model"
)

// Config carries the segmentation constants. Both values are injected
// configuration, not hard-coded: the gap that closes a session and the
// nominal window length may differ per deployment.
type Config struct {
	Gap      time.Duration // inactivity that closes a session
	Duration time.Duration // nominal session window length
}

// DefaultConfig mirrors Claude's 5-hour usage window.
func DefaultConfig() Config {
	return Config{
		Gap:      5 * time.Hour,
		Duration: 5 * time.Hour,
	}
}

// BurnRate is the consumption rate of the active session.
type BurnRate struct {
	TokensPerMinute float64
	CostPerHour     float64
}

// Session is a contiguous run of entries with no inter-entry gap
// exceeding the configured threshold.
type Session struct {
	StartTime     time.Time // first entry
	EndTime       time.Time // nominal end: StartTime + Config.Duration
	ActualEndTime time.Time // last entry
	IsActive      bool

	Entries []model.UsageEntry

	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	TotalTokens         int
	TotalCost           float64
	Models              []string // distinct, sorted

	BurnRate BurnRate
}

// Elapsed returns time since the session started, floored at zero.
func (s *Session) Elapsed(now time.Time) time.Duration {
	d := now.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining returns time until the nominal window ends, floored at zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
