package session

import (
	"time"

	"github.com/penwyp/go-claude-usage/internal/core/model"
)

// Detect segments a chronologically sorted entry stream into sessions.
// A gap greater than cfg.Gap between consecutive entries closes the
// current session and opens a new one; by construction at most the last
// session can be active. Entries must be sorted by timestamp ascending.
func Detect(entries []model.UsageEntry, now time.Time, cfg Config) []*Session {
	if len(entries) == 0 {
		return nil
	}

	var sessions []*Session
	current := newSession(entries[0], cfg)

	for _, e := range entries[1:] {
		if e.Timestamp.Sub(current.ActualEndTime) > cfg.Gap {
			finalize(current, now, cfg)
			sessions = append(sessions, current)
			current = newSession(e, cfg)
			continue
		}
		current.Entries = append(current.Entries, e)
		current.ActualEndTime = e.Timestamp
	}

	finalize(current, now, cfg)
	sessions = append(sessions, current)
	return sessions
}

// MostRecentActive returns the active session, or nil when none is.
// Only the chronologically last session can satisfy the activity rule.
func MostRecentActive(sessions []*Session) *Session {
	if len(sessions) == 0 {
		return nil
	}
	last := sessions[len(sessions)-1]
	if last.IsActive {
		return last
	}
	return nil
}

// MaxTokensAmongCompleted returns the highest token total among
// completed sessions. The active session is excluded: it is still
// growing and not a fair high-water mark. Returns 0 when no session has
// completed.
func MaxTokensAmongCompleted(sessions []*Session) int {
	max := 0
	for _, s := range sessions {
		if s.IsActive {
			continue
		}
		if s.TotalTokens > max {
			max = s.TotalTokens
		}
	}
	return max
}

func newSession(first model.UsageEntry, cfg Config) *Session {
	return &Session{
		StartTime:     first.Timestamp,
		EndTime:       first.Timestamp.Add(cfg.Duration),
		ActualEndTime: first.Timestamp,
		Entries:       []model.UsageEntry{first},
	}
}
