package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-usage/internal/data/aggregator"
	"github.com/penwyp/go-claude-usage/internal/testing/fixtures"
)

func newTestEngine(t *testing.T, dataDir string, clock *fakeClock) *Engine {
	t.Helper()
	e, err := New(Config{
		DataDir:  dataDir,
		Timezone: "UTC",
	}, clock)
	require.NoError(t, err)
	return e
}

func TestEngineReloadEndToEnd(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	// Two projects. proj-a has a morning burst and an afternoon burst
	// more than 5 hours later, so it contributes two sessions joined
	// with proj-b's overlapping afternoon activity.
	_, err := gen.GenerateActivity("proj-a", "morning", start, time.Minute, 4, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	afternoon := start.Add(6 * time.Hour)
	_, err = gen.GenerateActivity("proj-a", "afternoon", afternoon, time.Minute, 3, "claude-opus-4-20250514")
	require.NoError(t, err)
	_, err = gen.GenerateActivity("proj-b", "other", afternoon.Add(time.Minute), time.Minute, 2, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	clock := newFakeClock(afternoon.Add(30 * time.Minute))
	e := newTestEngine(t, gen.GetBaseDir(), clock)
	require.NoError(t, e.Reload())

	stats := e.CurrentStats()
	assert.Equal(t, 9, stats.EntryCount)
	assert.Equal(t, 2, stats.SessionCount)
	assert.Positive(t, stats.TotalCost)
	assert.Positive(t, stats.TotalTokens)

	require.Len(t, stats.ByProject, 2)
	require.Len(t, stats.ByModel, 2)
	require.Len(t, stats.ByDate, 1)
	assert.Equal(t, "2026-08-20", stats.ByDate[0].Date)

	sessions := e.Sessions()
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].IsActive)
	assert.True(t, sessions[1].IsActive)
	assert.Len(t, sessions[1].Entries, 5)

	active := e.CurrentSession()
	require.NotNil(t, active)
	assert.Equal(t, sessions[1].StartTime, active.StartTime)
	assert.Positive(t, active.BurnRate.TokensPerMinute)
}

func TestEngineReloadIsIdempotent(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	_, err := gen.GenerateActivity("proj-a", "sess", start, time.Minute, 5, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	clock := newFakeClock(start.Add(time.Hour))
	e := newTestEngine(t, gen.GetBaseDir(), clock)

	require.NoError(t, e.Reload())
	first := e.CurrentStats()

	require.NoError(t, e.Reload())
	second := e.CurrentStats()

	assert.Equal(t, first, second)
}

func TestEngineReloadAfterAppendGrowsTotals(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	path, err := gen.GenerateActivity("proj-a", "sess", start, time.Minute, 3, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	clock := newFakeClock(start.Add(time.Hour))
	e := newTestEngine(t, gen.GetBaseDir(), clock)

	require.NoError(t, e.Reload())
	before := e.CurrentStats()
	require.Equal(t, 3, before.EntryCount)
	require.Positive(t, before.TotalCost)

	// Appending to a live session file is the primary incremental flow:
	// the next reload must carry all previous entries plus the new one.
	require.NoError(t, gen.AppendRecords(path, []fixtures.Record{
		fixtures.AssistantRecord(start.Add(30*time.Minute), "sess", 30, "claude-sonnet-4-20250514", fixtures.Usage{InputTokens: 500, OutputTokens: 200}),
	}))

	require.NoError(t, e.Reload())
	after := e.CurrentStats()
	assert.Equal(t, 4, after.EntryCount)
	assert.Greater(t, after.TotalCost, before.TotalCost)
	assert.Greater(t, after.TotalTokens, before.TotalTokens)

	sessions := e.Sessions()
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Entries, 4)
}

func TestEngineEmptyDataDir(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, t.TempDir(), clock)
	require.NoError(t, e.Reload())

	stats := e.CurrentStats()
	assert.Zero(t, stats.EntryCount)
	assert.Zero(t, stats.TotalCost)
	// The daily rollup still carries a zero row for today.
	require.Len(t, stats.ByDate, 1)
	assert.Equal(t, "2026-08-20", stats.ByDate[0].Date)

	assert.Nil(t, e.CurrentSession())
	assert.Empty(t, e.Sessions())
}

func TestEngineSubscribers(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	_, err := gen.GenerateActivity("proj-a", "sess", start, time.Minute, 2, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	clock := newFakeClock(start.Add(time.Hour))
	e := newTestEngine(t, gen.GetBaseDir(), clock)

	var notified atomic.Int32
	cancel := e.Subscribe(func() { notified.Add(1) })

	require.NoError(t, e.Reload())
	assert.Equal(t, int32(1), notified.Load())

	require.NoError(t, e.Reload())
	assert.Equal(t, int32(2), notified.Load())

	cancel()
	require.NoError(t, e.Reload())
	assert.Equal(t, int32(2), notified.Load())
}

func TestEngineTodayStats(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	yesterday := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	_, err := gen.GenerateActivity("proj-a", "old", yesterday, time.Minute, 5, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	_, err = gen.GenerateActivity("proj-a", "fresh", today, time.Minute, 3, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	clock := newFakeClock(today.Add(time.Hour))
	e := newTestEngine(t, gen.GetBaseDir(), clock)
	require.NoError(t, e.Reload())

	assert.Equal(t, 8, e.CurrentStats().EntryCount)

	todayStats := e.TodayStats()
	assert.Equal(t, 3, todayStats.EntryCount)
	require.Len(t, todayStats.ByDate, 1)
	assert.Equal(t, "2026-08-20", todayStats.ByDate[0].Date)
}

func TestEngineStatsForRange(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	base := time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC)

	for i, session := range []string{"day1", "day2", "day3"} {
		_, err := gen.GenerateActivity("proj-a", session, base.AddDate(0, 0, i), time.Minute, 2, "claude-sonnet-4-20250514")
		require.NoError(t, err)
	}

	clock := newFakeClock(base.AddDate(0, 0, 2).Add(time.Hour))
	e := newTestEngine(t, gen.GetBaseDir(), clock)
	require.NoError(t, e.Reload())

	stats, err := e.StatsForRange(base, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.EntryCount)
	assert.Equal(t, 2, stats.SessionCount)

	_, err = e.StatsForRange(base.AddDate(0, 0, 2), base)
	assert.ErrorIs(t, err, aggregator.ErrInvalidRange)
}

func TestEngineHourlyCosts(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	nine := time.Date(2026, 8, 20, 9, 10, 0, 0, time.UTC)

	_, err := gen.GenerateActivity("proj-a", "sess", nine, time.Minute, 3, "claude-sonnet-4-20250514")
	require.NoError(t, err)

	clock := newFakeClock(nine.Add(2 * time.Hour))
	e := newTestEngine(t, gen.GetBaseDir(), clock)
	require.NoError(t, e.Reload())

	buckets := e.HourlyCosts()
	assert.Positive(t, buckets[9])
	for h, cost := range buckets {
		if h != 9 {
			assert.Zero(t, cost, "hour %d", h)
		}
	}
}

func TestEngineValidatesConfig(t *testing.T) {
	e, err := New(Config{DataDir: "/nonexistent", Timezone: "Not/AZone"}, nil)
	assert.Error(t, err)
	assert.Nil(t, e)
}
