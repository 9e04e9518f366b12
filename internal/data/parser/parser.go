package parser

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-claude-usage/internal/core/model"
	"github.com/penwyp/go-claude-usage/internal/core/pricing"
	"github.com/penwyp/go-claude-usage/internal/data/cache"
	"github.com/penwyp/go-claude-usage/internal/data/scanner"
	"github.com/penwyp/go-claude-usage/internal/util"
)

// Concurrency strategy thresholds. These are performance heuristics, not
// correctness rules: tiny inputs skip scheduling overhead entirely, huge
// inputs are chunked to bound peak memory and open file handles.
const (
	sequentialThreshold = 5
	batchThreshold      = 500
	batchSize           = 100
)

// Parser turns discovered log files into deduplicated usage entries,
// reusing cached parse results for files whose metadata is unchanged.
type Parser struct {
	concurrency int
	pricing     pricing.Provider
	cache       *cache.FileCache
}

// fileResult pairs one file's metadata with its freshly parsed entries.
// Results are kept in input order so cross-file deduplication stays
// deterministic regardless of worker scheduling.
type fileResult struct {
	meta    scanner.FileMetadata
	entries []model.UsageEntry
}

// NewParser creates a Parser with the given worker bound.
func NewParser(concurrency int, provider pricing.Provider, fileCache *cache.FileCache) *Parser {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Parser{
		concurrency: concurrency,
		pricing:     provider,
		cache:       fileCache,
	}
}

// Parse partitions files into cache hits and dirty files, parses the
// dirty ones with a size-appropriate concurrency strategy, merges fresh
// results into the cache, and returns all entries. Per-file failures
// yield an empty result for that file, never an aborted batch. The
// returned entries are not globally ordered; callers needing
// chronological order must sort.
func (p *Parser) Parse(files []scanner.FileMetadata, dedup *DedupState) []model.UsageEntry {
	out := make([]model.UsageEntry, 0, len(files)*32)

	var dirty []scanner.FileMetadata
	for _, f := range files {
		if entries, ok := p.cache.Get(f.Path, f.ModTime, f.Size); ok {
			dedup.Claim(entries)
			out = append(out, entries...)
			continue
		}
		dirty = append(dirty, f)
	}

	if len(dirty) == 0 {
		return out
	}
	util.LogDebugf("Parsing %d dirty files (%d cache hits)", len(dirty), len(files)-len(dirty))

	// Merge after the parallel phase completes, in input order.
	for _, r := range p.parseDirty(dirty) {
		kept := dedup.Filter(r.entries)
		p.cache.Set(r.meta.Path, r.meta.ModTime, r.meta.Size, kept)
		out = append(out, kept...)
	}
	return out
}

// parseDirty chooses the concurrency strategy by dirty-file count.
func (p *Parser) parseDirty(files []scanner.FileMetadata) []fileResult {
	switch {
	case len(files) <= sequentialThreshold:
		results := make([]fileResult, len(files))
		for i, f := range files {
			results[i] = fileResult{meta: f, entries: p.parseFile(f)}
		}
		return results
	case len(files) <= batchThreshold:
		return p.parseParallel(files)
	default:
		results := make([]fileResult, 0, len(files))
		for start := 0; start < len(files); start += batchSize {
			end := start + batchSize
			if end > len(files) {
				end = len(files)
			}
			results = append(results, p.parseParallel(files[start:end])...)
		}
		return results
	}
}

// parseParallel parses files concurrently under a bounded semaphore,
// writing into an indexed slice so result order matches input order.
func (p *Parser) parseParallel(files []scanner.FileMetadata) []fileResult {
	results := make([]fileResult, len(files))
	semaphore := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i := range files {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[idx] = fileResult{
				meta:    files[idx],
				entries: p.parseFile(files[idx]),
			}
		}(i)
	}

	wg.Wait()
	return results
}

// parseFile reads one file and converts its lines to usage entries.
// Each file's parse is a pure function of its own bytes; shared state is
// touched only in the merge phase.
func (p *Parser) parseFile(meta scanner.FileMetadata) []model.UsageEntry {
	data, err := os.ReadFile(meta.Path)
	if err != nil {
		// Vanished or unreadable under an active writer; skip, never abort.
		util.LogDebugf("Skip unreadable file: %s - %v", meta.Path, err)
		return nil
	}

	var entries []model.UsageEntry
	for start := 0; start < len(data); {
		end := bytes.IndexByte(data[start:], '\n')
		var line []byte
		if end < 0 {
			line = data[start:]
			start = len(data)
		} else {
			line = data[start : start+end]
			start += end + 1
		}

		entry, ok := p.parseLine(line, meta)
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// parseLine decodes one JSONL line into a usage entry. Lines that are
// not shaped like a JSON object (partial writes from a concurrent
// writer), fail to decode, or carry no usage are skipped silently.
func (p *Parser) parseLine(line []byte, meta scanner.FileMetadata) (model.UsageEntry, bool) {
	line = bytes.TrimSpace(line)
	if len(line) < 2 || line[0] != '{' || line[len(line)-1] != '}' {
		return model.UsageEntry{}, false
	}

	var log model.UsageLog
	if err := sonic.Unmarshal(line, &log); err != nil {
		return model.UsageEntry{}, false
	}
	if !log.HasUsage() {
		return model.UsageEntry{}, false
	}

	ts, err := log.ParsedTime()
	if err != nil {
		return model.UsageEntry{}, false
	}

	usage := log.Message.Usage
	entry := model.UsageEntry{
		Timestamp:           ts,
		Model:               log.Message.Model,
		InputTokens:         usage.InputTokens,
		OutputTokens:        usage.OutputTokens,
		CacheCreationTokens: usage.CacheCreationInputTokens,
		CacheReadTokens:     usage.CacheReadInputTokens,
		Project:             meta.Project,
		SessionID:           log.SessionId,
		MessageID:           log.Message.Id,
		RequestID:           log.RequestId,
		SourceFile:          meta.Path,
	}
	if entry.SessionID == "" {
		entry.SessionID = meta.SessionID
	}

	if log.CostUSD != nil && *log.CostUSD > 0 {
		entry.CostUSD = *log.CostUSD
	} else {
		entry.CostUSD = p.computeCost(entry)
	}
	return entry, true
}

func (p *Parser) computeCost(entry model.UsageEntry) float64 {
	modelPricing, err := p.pricing.GetPricing(context.Background(), entry.Model)
	if err != nil {
		util.LogDebugf("Failed to get pricing for model %s: %v", entry.Model, err)
		modelPricing = pricing.GetPricing(model.ModelDefault)
	}
	return modelPricing.Cost(entry.InputTokens, entry.OutputTokens,
		entry.CacheCreationTokens, entry.CacheReadTokens)
}
