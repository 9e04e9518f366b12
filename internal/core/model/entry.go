package model

import "time"

// UsageEntry is one canonical, deduplicated record of token and cost
// usage for a single API call. Entries are immutable after parsing.
type UsageEntry struct {
	Timestamp           time.Time `json:"timestamp"`
	Model               string    `json:"model"`
	InputTokens         int       `json:"inputTokens"`
	OutputTokens        int       `json:"outputTokens"`
	CacheCreationTokens int       `json:"cacheCreationTokens"`
	CacheReadTokens     int       `json:"cacheReadTokens"`
	CostUSD             float64   `json:"costUSD"`
	Project             string    `json:"project"`
	SessionID           string    `json:"sessionId"`
	MessageID           string    `json:"messageId"`
	RequestID           string    `json:"requestId"`
	SourceFile          string    `json:"sourceFile"`
}

// TotalTokens returns the sum of all token categories.
func (e UsageEntry) TotalTokens() int {
	return e.InputTokens + e.OutputTokens + e.CacheCreationTokens + e.CacheReadTokens
}

// DedupKey returns the composite deduplication key, or "" when either
// identifier is missing. Keyless entries cannot be deduplicated and are
// always kept.
func (e UsageEntry) DedupKey() string {
	if e.MessageID == "" || e.RequestID == "" {
		return ""
	}
	return e.MessageID + ":" + e.RequestID
}
