package parser

import (
	"sync"

	"github.com/penwyp/go-claude-usage/internal/core/model"
)

// DedupState tracks which (message-id, request-id) composite keys have
// been seen within a single load. The state must not outlive the load:
// a file that grows is reparsed end to end, and keys registered by a
// previous load would wrongly drop its older lines. Callers build a
// fresh state per load and let cache hits claim their keys into it.
type DedupState struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupState creates an empty dedup state.
func NewDedupState() *DedupState {
	return &DedupState{
		seen: make(map[string]struct{}),
	}
}

// Filter returns the entries whose keys have not been seen, registering
// them as seen. Keyless entries are always kept: they cannot be
// deduplicated, and dropping them would silently lose usage.
func (d *DedupState) Filter(entries []model.UsageEntry) []model.UsageEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := make([]model.UsageEntry, 0, len(entries))
	for _, e := range entries {
		key := e.DedupKey()
		if key == "" {
			kept = append(kept, e)
			continue
		}
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.seen[key] = struct{}{}
		kept = append(kept, e)
	}
	return kept
}

// Claim re-registers the keys of already-deduplicated entries without
// dropping any. Cache hits go through here: their entries were filtered
// when first parsed, so they own their keys.
func (d *DedupState) Claim(entries []model.UsageEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range entries {
		if key := e.DedupKey(); key != "" {
			d.seen[key] = struct{}{}
		}
	}
}

// Len returns the number of registered keys.
func (d *DedupState) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
