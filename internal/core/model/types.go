package model

import (
	"time"
)

// Record entry types that can carry usage metrics.
const (
	EntryMessage   = "message"
	EntryAssistant = "assistant"
)

// Model identifiers
const (
	ModelDefault  = "default"
	ModelHaiku35  = "claude-3-5-haiku"
	ModelSonnet35 = "claude-3-5-sonnet"
	ModelSonnet4  = "claude-sonnet-4-20250514"
	ModelOpus4    = "claude-opus-4-20250514"
)

// UsageLog is one raw JSONL line from a Claude Code conversation log.
// Decoding is deliberately tolerant: every field is optional, and records
// missing the pieces we need are skipped rather than treated as errors.
type UsageLog struct {
	Cwd         string   `json:"cwd,omitempty"`
	IsSidechain bool     `json:"isSidechain,omitempty"`
	Message     Message  `json:"message,omitempty"`
	RequestId   string   `json:"requestId,omitempty"`
	SessionId   string   `json:"sessionId,omitempty"`
	Timestamp   string   `json:"timestamp"`
	Type        string   `json:"type"`
	Uuid        string   `json:"uuid,omitempty"`
	Version     string   `json:"version,omitempty"`
	CostUSD     *float64 `json:"costUSD,omitempty"`
}

// Message is the nested API message object of a UsageLog.
type Message struct {
	Id    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
	Role  string `json:"role,omitempty"`
	Usage Usage  `json:"usage,omitempty"`
}

// Usage carries the token counts of one API call.
type Usage struct {
	CacheCreationInputTokens int    `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int    `json:"cache_read_input_tokens"`
	InputTokens              int    `json:"input_tokens"`
	OutputTokens             int    `json:"output_tokens"`
	ServiceTier              string `json:"service_tier,omitempty"`
}

// HasTokens reports whether any token count is non-zero. All-zero usage
// records are synthetic (errors, meta lines) and are discarded at parse.
func (u Usage) HasTokens() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0 ||
		u.CacheCreationInputTokens > 0 || u.CacheReadInputTokens > 0
}

// HasUsage reports whether this log line is a usage-bearing record.
func (l UsageLog) HasUsage() bool {
	if l.Type != EntryMessage && l.Type != EntryAssistant {
		return false
	}
	return l.Message.Usage.HasTokens()
}

// ParsedTime parses the record timestamp. Claude Code writes RFC3339
// with fractional seconds; older versions wrote plain RFC3339.
func (l UsageLog) ParsedTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, l.Timestamp)
	if err != nil {
		t, err = time.Parse(time.RFC3339, l.Timestamp)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
