package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-usage/internal/core/pricing"
	"github.com/penwyp/go-claude-usage/internal/data/cache"
	"github.com/penwyp/go-claude-usage/internal/data/scanner"
	"github.com/penwyp/go-claude-usage/internal/testing/fixtures"
)

func newTestParser() (*Parser, *cache.FileCache) {
	fileCache := cache.NewFileCache()
	return NewParser(4, pricing.NewDefaultProvider(), fileCache), fileCache
}

// metadataFor stats path into the FileMetadata shape discovery would
// produce.
func metadataFor(t *testing.T, path string) scanner.FileMetadata {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)

	name := filepath.Base(path)
	return scanner.FileMetadata{
		Path:      path,
		Project:   filepath.Base(filepath.Dir(path)),
		SessionID: strings.TrimSuffix(name, filepath.Ext(name)),
		Timestamp: info.ModTime(),
		ModTime:   info.ModTime(),
		Size:      info.Size(),
	}
}

func TestParseUsageRecords(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	path, err := gen.GenerateActivity("proj-a", "sess-1", start, time.Minute, 3, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	p, _ := newTestParser()
	entries := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())

	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, start.Add(time.Duration(i)*time.Minute), e.Timestamp)
		assert.Equal(t, "claude-sonnet-4-20250514", e.Model)
		assert.Equal(t, "sess-1", e.SessionID)
		assert.Equal(t, "proj-a", e.Project)
		assert.Equal(t, path, e.SourceFile)
		assert.Positive(t, e.CostUSD)
	}
}

func TestParseSkipsNonUsageAndMalformedLines(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	records := []fixtures.Record{
		fixtures.UserRecord(start, "sess-1", 0),
		fixtures.AssistantRecord(start.Add(time.Second), "sess-1", 1, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 100, OutputTokens: 50}),
		// All-zero usage is a synthetic record, skipped.
		fixtures.AssistantRecord(start.Add(2*time.Second), "sess-1", 2, "claude-sonnet-4-20250514", fixtures.Usage{}),
	}
	path, err := gen.WriteSession("proj-a", "sess-1", records)
	require.NoError(t, err)

	// Plant malformed input after the valid records.
	require.NoError(t, gen.AppendRaw(path,
		"not json at all",
		`{"truncated": "partial wri`,
		`{"type":"assistant","timestamp":"garbage","message":{"usage":{"input_tokens":5}}}`,
		"",
		`{"type":"summary","summary":"compacted"}`,
	))

	p, _ := newTestParser()
	entries := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())

	require.Len(t, entries, 1)
	assert.Equal(t, 100, entries[0].InputTokens)
	assert.Equal(t, 50, entries[0].OutputTokens)
}

func TestParseDeduplicatesAcrossFiles(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	// The same API response is logged in two files, as happens when a
	// conversation is resumed into a new session file.
	shared := fixtures.AssistantRecord(start, "sess-1", 1, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 1000, OutputTokens: 500})

	pathA, err := gen.WriteSession("proj-a", "sess-1", []fixtures.Record{shared})
	require.NoError(t, err)
	pathB, err := gen.WriteSession("proj-a", "sess-2", []fixtures.Record{shared})
	require.NoError(t, err)

	p, _ := newTestParser()
	entries := p.Parse([]scanner.FileMetadata{
		metadataFor(t, pathA),
		metadataFor(t, pathB),
	}, NewDedupState())

	require.Len(t, entries, 1)
	assert.Equal(t, 1000, entries[0].InputTokens)
}

func TestParseKeepsKeylessRecords(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	// Records without a request ID cannot be deduplicated and are all kept.
	rec := fixtures.AssistantRecord(start, "sess-1", 1, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 10})
	rec.RequestId = ""

	path, err := gen.WriteSession("proj-a", "sess-1", []fixtures.Record{rec, rec})
	require.NoError(t, err)

	p, _ := newTestParser()
	entries := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())
	assert.Len(t, entries, 2)
}

func TestParseReparseIsIdempotent(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	path, err := gen.GenerateActivity("proj-a", "sess-1", start, time.Minute, 5, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	meta := metadataFor(t, path)

	p, fileCache := newTestParser()
	dedup := NewDedupState()

	first := p.Parse([]scanner.FileMetadata{meta}, dedup)
	require.Len(t, first, 5)
	keysAfterFirst := dedup.Len()
	assert.Equal(t, 1, fileCache.Len())

	// Unchanged file: the cache serves entries and the dedup state does
	// not grow, so totals stay exactly stable across reloads.
	second := p.Parse([]scanner.FileMetadata{meta}, dedup)
	assert.Equal(t, first, second)
	assert.Equal(t, keysAfterFirst, dedup.Len())
}

func TestParseAppendedFileKeepsHistory(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	path, err := gen.GenerateActivity("proj-a", "sess-1", start, time.Minute, 3, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	p, fileCache := newTestParser()

	first := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())
	require.Len(t, first, 3)

	// Append two more records. The grown file is dirty end to end; a
	// full reparse under a fresh per-load dedup state must keep the
	// original three entries alongside the new tail, with nothing
	// double counted.
	require.NoError(t, gen.AppendRecords(path, []fixtures.Record{
		fixtures.AssistantRecord(start.Add(10*time.Minute), "sess-1", 10, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 7}),
		fixtures.AssistantRecord(start.Add(11*time.Minute), "sess-1", 11, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 8}),
	}))

	second := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())
	require.Len(t, second, 5)

	keys := make(map[string]struct{}, len(second))
	for _, e := range second {
		keys[e.DedupKey()] = struct{}{}
	}
	assert.Len(t, keys, 5)

	// The cache was refreshed with the full parse, so the next load is
	// served whole from cache.
	assert.Equal(t, 1, fileCache.Len())
	third := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())
	assert.Equal(t, second, third)
}

func TestParseHonorsRecordedCost(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	recorded := fixtures.AssistantRecord(start, "sess-1", 1, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 1_000_000})
	cost := 9.99
	recorded.CostUSD = &cost

	computed := fixtures.AssistantRecord(start.Add(time.Second), "sess-1", 2, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 1_000_000})

	path, err := gen.WriteSession("proj-a", "sess-1", []fixtures.Record{recorded, computed})
	require.NoError(t, err)

	p, _ := newTestParser()
	entries := p.Parse([]scanner.FileMetadata{metadataFor(t, path)}, NewDedupState())
	require.Len(t, entries, 2)

	assert.InDelta(t, 9.99, entries[0].CostUSD, 1e-9)
	// 1M input tokens at the Sonnet rate.
	assert.InDelta(t, 3.00, entries[1].CostUSD, 1e-9)
}

func TestParseMissingFileYieldsNothing(t *testing.T) {
	p, _ := newTestParser()
	meta := scanner.FileMetadata{
		Path:    filepath.Join(t.TempDir(), "vanished.jsonl"),
		ModTime: time.Now(),
		Size:    100,
	}
	entries := p.Parse([]scanner.FileMetadata{meta}, NewDedupState())
	assert.Empty(t, entries)
}

func TestParseManyFilesAllStrategies(t *testing.T) {
	// File counts straddling each concurrency threshold produce
	// identical per-file results.
	counts := []int{3, 12, 600}
	start := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	for _, count := range counts {
		count := count
		t.Run(fmt.Sprintf("%d files", count), func(t *testing.T) {
			if count > 100 && testing.Short() {
				t.Skip("skipping large file-count case in short mode")
			}

			gen := fixtures.NewGenerator(t.TempDir())
			metas := make([]scanner.FileMetadata, 0, count)
			for i := 0; i < count; i++ {
				session := fmt.Sprintf("sess-%04d", i)
				path, err := gen.WriteSession("proj-a", session, []fixtures.Record{
					fixtures.AssistantRecord(start.Add(time.Duration(i)*time.Second), session, i, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 10}),
				})
				require.NoError(t, err)
				metas = append(metas, metadataFor(t, path))
			}

			p, _ := newTestParser()
			entries := p.Parse(metas, NewDedupState())
			require.Len(t, entries, count)

			// Merge order follows input order regardless of strategy.
			for i, e := range entries {
				assert.Equal(t, fmt.Sprintf("sess-%04d", i), e.SessionID)
			}
		})
	}
}
