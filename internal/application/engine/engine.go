package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/penwyp/go-claude-usage/internal/core/model"
	"github.com/penwyp/go-claude-usage/internal/core/pricing"
	"github.com/penwyp/go-claude-usage/internal/core/session"
	"github.com/penwyp/go-claude-usage/internal/data/aggregator"
	"github.com/penwyp/go-claude-usage/internal/data/cache"
	"github.com/penwyp/go-claude-usage/internal/data/parser"
	"github.com/penwyp/go-claude-usage/internal/data/scanner"
	"github.com/penwyp/go-claude-usage/internal/util"
)

// Engine owns the full ingest pipeline and exposes an immutable snapshot
// of its results to the presentation layer. The file cache is owned here
// with single-writer discipline: exactly one reload runs at a time,
// serialized through reloadMu, while snapshot reads take a separate
// RWMutex and never block a reload. Dedup state is scoped to one load,
// never to the engine: a grown file is reparsed end to end, and its old
// lines must survive the reparse rather than collide with keys left over
// from a previous reload.
type Engine struct {
	config     Config
	clock      util.Clock
	sessionCfg session.Config

	scanner    *scanner.Scanner
	parser     *parser.Parser
	fileCache  *cache.FileCache
	aggregator *aggregator.Aggregator

	reloadMu sync.Mutex // single-owner boundary for parse/merge cycles

	mu       sync.RWMutex
	entries  []model.UsageEntry
	stats    aggregator.UsageStats
	sessions []*session.Session

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int

	controller *RefreshController
	watcher    *DirectoryWatcher
}

// New creates an Engine from the given configuration.
func New(config Config, clock util.Clock) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := util.InitializeTimeProvider(config.Timezone); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = util.NewSystemClock()
	}

	var provider pricing.Provider
	if len(config.PricingOverrides) > 0 {
		provider = pricing.NewDefaultProviderWithOverrides(config.PricingOverrides)
	} else {
		provider = pricing.NewDefaultProvider()
	}

	fileCache := cache.NewFileCache()
	e := &Engine{
		config: config,
		clock:  clock,
		sessionCfg: session.Config{
			Gap:      config.SessionGap,
			Duration: config.SessionDuration,
		},
		scanner:     scanner.NewScanner(config.DataDir, clock),
		parser:      parser.NewParser(config.Concurrency, provider, fileCache),
		fileCache:   fileCache,
		aggregator:  aggregator.NewAggregator(util.GetTimeProvider().Location()),
		subscribers: make(map[int]func()),
	}
	e.controller = NewRefreshController(clock, config.MinReloadInterval, config.FallbackInterval, func() {
		if err := e.Reload(); err != nil {
			util.LogErrorf("Reload failed: %v", err)
		}
	})
	return e, nil
}

// Reload runs one full scan/parse/segment/aggregate cycle and swaps the
// snapshot. Per-file failures are absorbed upstream; only whole-operation
// failures (an unreadable projects root) propagate. A reload is never
// torn down mid-flight by a newer trigger.
func (e *Engine) Reload() error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	files, err := e.scanner.Discover()
	if err != nil {
		return fmt.Errorf("discovering usage files: %w", err)
	}

	// The dedup state lives for exactly one load. Cache hits claim their
	// keys into it, so a dirty reparse of a grown file keeps all of its
	// own entries while cross-file duplicates still collapse.
	entries := e.parser.Parse(files, parser.NewDedupState())

	// Entries merged during the parallel phase carry no global order;
	// segmentation requires chronological input.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	now := e.clock.Now()
	sessions := session.Detect(entries, now, e.sessionCfg)
	stats := e.aggregator.Aggregate(entries, len(sessions))
	stats.ByDate = e.aggregator.EnsureToday(stats.ByDate, now)

	e.mu.Lock()
	e.entries = entries
	e.stats = stats
	e.sessions = sessions
	e.mu.Unlock()

	util.LogInfof("Reload complete: %d files, %d entries, %d sessions, total cost %.2f",
		len(files), len(entries), len(sessions), stats.TotalCost)

	e.notifySubscribers()
	return nil
}

// CurrentStats returns the statistics from the last successful reload.
func (e *Engine) CurrentStats() aggregator.UsageStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// CurrentSession returns the active session, or nil when none is active.
func (e *Engine) CurrentSession() *session.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return session.MostRecentActive(e.sessions)
}

// Sessions returns all sessions from the last reload.
func (e *Engine) Sessions() []*session.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*session.Session, len(e.sessions))
	copy(out, e.sessions)
	return out
}

// TodayStats aggregates only today's entries under a fresh dedup scope,
// so the narrow fast path is not skewed by long-lived history.
func (e *Engine) TodayStats() aggregator.UsageStats {
	e.mu.RLock()
	entries := e.entries
	e.mu.RUnlock()

	now := e.clock.Now()
	today := e.aggregator.FilterToday(entries, now)
	scoped := parser.NewDedupState().Filter(today)

	sessions := session.Detect(scoped, now, e.sessionCfg)
	stats := e.aggregator.Aggregate(scoped, len(sessions))
	stats.ByDate = e.aggregator.EnsureToday(stats.ByDate, now)
	return stats
}

// StatsForRange aggregates the last snapshot's entries within [from, to).
func (e *Engine) StatsForRange(from, to time.Time) (aggregator.UsageStats, error) {
	e.mu.RLock()
	entries := e.entries
	e.mu.RUnlock()

	scoped := make([]model.UsageEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Timestamp.Before(from) && entry.Timestamp.Before(to) {
			scoped = append(scoped, entry)
		}
	}
	sessions := session.Detect(scoped, e.clock.Now(), e.sessionCfg)
	return e.aggregator.AggregateRange(entries, from, to, len(sessions))
}

// HourlyCosts returns today's cost bucketed by local hour.
func (e *Engine) HourlyCosts() [24]float64 {
	e.mu.RLock()
	entries := e.entries
	e.mu.RUnlock()
	return e.aggregator.HourlyCosts(entries, e.clock.Now())
}

// Subscribe registers fn to run after each successful reload, returning
// a cancel function. Callbacks run on the reloading goroutine and should
// hand off promptly.
func (e *Engine) Subscribe(fn func()) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *Engine) notifySubscribers() {
	e.subMu.Lock()
	fns := make([]func(), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Start performs an initial reload and arms all refresh triggers.
func (e *Engine) Start() error {
	if err := e.Reload(); err != nil {
		return err
	}

	watcher, err := NewDirectoryWatcher(e.config.DataDir, e.config.CoalesceWindow, func() {
		e.controller.Notify(TriggerDirectoryChanged)
	})
	if err != nil {
		return fmt.Errorf("starting directory watcher: %w", err)
	}
	e.watcher = watcher
	e.controller.Start()
	return nil
}

// Stop disarms all triggers. Idempotent.
func (e *Engine) Stop() {
	e.controller.Stop()
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
}

// NotifyAppActive opportunistically refreshes when the host application
// becomes active, then leaves monitoring armed.
func (e *Engine) NotifyAppActive() {
	e.controller.Notify(TriggerAppActive)
}

// NotifyWindowFocused opportunistically refreshes on window focus.
func (e *Engine) NotifyWindowFocused() {
	e.controller.Notify(TriggerWindowFocused)
}

// NotifyClockChanged forces a refresh after a system clock jump.
func (e *Engine) NotifyClockChanged() {
	e.controller.Notify(TriggerClockChanged)
}
