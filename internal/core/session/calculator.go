package session

import (
	"sort"
	"time"
)

// finalize computes a session's aggregates once its membership is fixed:
// token and cost sums, the distinct model set, the activity flag, and
// the burn rate for the active session.
func finalize(s *Session, now time.Time, cfg Config) {
	modelSet := make(map[string]struct{})
	for _, e := range s.Entries {
		s.InputTokens += e.InputTokens
		s.OutputTokens += e.OutputTokens
		s.CacheCreationTokens += e.CacheCreationTokens
		s.CacheReadTokens += e.CacheReadTokens
		s.TotalCost += e.CostUSD
		if e.Model != "" {
			modelSet[e.Model] = struct{}{}
		}
	}
	s.TotalTokens = s.InputTokens + s.OutputTokens + s.CacheCreationTokens + s.CacheReadTokens

	s.Models = make([]string, 0, len(modelSet))
	for m := range modelSet {
		s.Models = append(s.Models, m)
	}
	sort.Strings(s.Models)

	s.IsActive = now.Sub(s.ActualEndTime) < cfg.Gap
	if s.IsActive {
		s.BurnRate = computeBurnRate(s, now)
	}
}

// computeBurnRate divides the active session's totals by elapsed time
// since its start.
func computeBurnRate(s *Session, now time.Time) BurnRate {
	elapsed := s.Elapsed(now)
	if elapsed <= 0 {
		return BurnRate{}
	}
	minutes := elapsed.Minutes()
	hours := elapsed.Hours()
	return BurnRate{
		TokensPerMinute: float64(s.TotalTokens) / minutes,
		CostPerHour:     s.TotalCost / hours,
	}
}
