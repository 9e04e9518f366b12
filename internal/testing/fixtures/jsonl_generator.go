package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is a single JSONL log line in Claude Code conversation format.
type Record struct {
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Uuid      string   `json:"uuid,omitempty"`
	SessionId string   `json:"sessionId,omitempty"`
	RequestId string   `json:"requestId,omitempty"`
	Version   string   `json:"version,omitempty"`
	CostUSD   *float64 `json:"costUSD,omitempty"`
	Message   Message  `json:"message"`
}

// Message is the nested API message object of a Record.
type Message struct {
	Id      string `json:"id,omitempty"`
	Role    string `json:"role,omitempty"`
	Model   string `json:"model,omitempty"`
	Content string `json:"content,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Usage carries the token counts of one API call.
type Usage struct {
	InputTokens              int    `json:"input_tokens"`
	OutputTokens             int    `json:"output_tokens"`
	CacheCreationInputTokens int    `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int    `json:"cache_read_input_tokens"`
	ServiceTier              string `json:"service_tier,omitempty"`
}

// Generator writes JSONL conversation logs into a projects directory
// laid out the way Claude Code does: one subdirectory per project, one
// file per session.
type Generator struct {
	baseDir string
}

// NewGenerator creates a generator rooted at baseDir.
func NewGenerator(baseDir string) *Generator {
	return &Generator{baseDir: baseDir}
}

// GetBaseDir returns the projects root the generator writes into.
func (g *Generator) GetBaseDir() string {
	return g.baseDir
}

// AssistantRecord builds a usage-bearing assistant record with distinct
// message and request IDs derived from seq.
func AssistantRecord(ts time.Time, sessionID string, seq int, model string, usage Usage) Record {
	return Record{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Type:      "assistant",
		Uuid:      fmt.Sprintf("uuid-%s-%d", sessionID, seq),
		SessionId: sessionID,
		RequestId: fmt.Sprintf("req_%s_%04d", sessionID, seq),
		Version:   "1.0.64",
		Message: Message{
			Id:    fmt.Sprintf("msg_%s_%04d", sessionID, seq),
			Role:  "assistant",
			Model: model,
			Usage: &usage,
		},
	}
}

// UserRecord builds a non-usage user record, the kind the parser skips.
func UserRecord(ts time.Time, sessionID string, seq int) Record {
	return Record{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Type:      "user",
		Uuid:      fmt.Sprintf("uuid-user-%s-%d", sessionID, seq),
		SessionId: sessionID,
		Message: Message{
			Role:    "user",
			Content: "test prompt",
		},
	}
}

// WriteSession writes records into <project>/<session>.jsonl, creating
// the project directory as needed, and returns the file path.
func (g *Generator) WriteSession(project, sessionID string, records []Record) (string, error) {
	projectDir := filepath.Join(g.baseDir, project)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(projectDir, sessionID+".jsonl")
	return path, g.WriteFile(path, records)
}

// WriteFile writes records as JSONL to an explicit path.
func (g *Generator) WriteFile(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// AppendRecords appends records to an existing JSONL file.
func (g *Generator) AppendRecords(path string, records []Record) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// AppendRaw appends arbitrary lines to a JSONL file, used for planting
// malformed input.
func (g *Generator) AppendRaw(path string, lines ...string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return err
		}
	}
	return nil
}

// GenerateActivity writes count assistant records spaced interval apart,
// starting at start, into <project>/<session>.jsonl.
func (g *Generator) GenerateActivity(project, sessionID string, start time.Time, interval time.Duration, count int, model string) (string, error) {
	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, AssistantRecord(start.Add(time.Duration(i)*interval), sessionID, i, model, Usage{
			InputTokens:              100 + i*10,
			OutputTokens:             50 + i*5,
			CacheCreationInputTokens: 10 + i,
			CacheReadInputTokens:     20 + i,
		}))
	}
	return g.WriteSession(project, sessionID, records)
}

// CreateEmptyProject creates a project directory containing one empty
// session file.
func (g *Generator) CreateEmptyProject(project string) error {
	projectDir := filepath.Join(g.baseDir, project)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(projectDir, "empty.jsonl"))
	if err != nil {
		return err
	}
	return file.Close()
}
