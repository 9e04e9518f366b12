package aggregator

import (
	"errors"
	"sort"
	"time"

	"github.com/penwyp/go-claude-usage/internal/core/model"
)

// ErrInvalidRange indicates caller-side misuse: a malformed or inverted
// date range handed to a range-bounded aggregation.
var ErrInvalidRange = errors.New("invalid aggregation range")

// ModelStat is the rollup for one model.
type ModelStat struct {
	Model               string  `json:"model"`
	InputTokens         int     `json:"inputTokens"`
	OutputTokens        int     `json:"outputTokens"`
	CacheCreationTokens int     `json:"cacheCreationTokens"`
	CacheReadTokens     int     `json:"cacheReadTokens"`
	TotalTokens         int     `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	EntryCount          int     `json:"entryCount"`
}

// DateStat is the rollup for one calendar day.
type DateStat struct {
	Date                string  `json:"date"` // "2006-01-02"
	InputTokens         int     `json:"inputTokens"`
	OutputTokens        int     `json:"outputTokens"`
	CacheCreationTokens int     `json:"cacheCreationTokens"`
	CacheReadTokens     int     `json:"cacheReadTokens"`
	TotalTokens         int     `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	EntryCount          int     `json:"entryCount"`
}

// ProjectStat is the rollup for one project.
type ProjectStat struct {
	Project             string  `json:"project"`
	InputTokens         int     `json:"inputTokens"`
	OutputTokens        int     `json:"outputTokens"`
	CacheCreationTokens int     `json:"cacheCreationTokens"`
	CacheReadTokens     int     `json:"cacheReadTokens"`
	TotalTokens         int     `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	EntryCount          int     `json:"entryCount"`
}

// UsageStats is the full statistics snapshot handed to the presentation
// layer. It is a pure derivation of the entry set and holds no state.
type UsageStats struct {
	TotalCost           float64       `json:"totalCost"`
	InputTokens         int           `json:"inputTokens"`
	OutputTokens        int           `json:"outputTokens"`
	CacheCreationTokens int           `json:"cacheCreationTokens"`
	CacheReadTokens     int           `json:"cacheReadTokens"`
	TotalTokens         int           `json:"totalTokens"`
	SessionCount        int           `json:"sessionCount"`
	EntryCount          int           `json:"entryCount"`
	ByModel             []ModelStat   `json:"byModel"`   // cost descending
	ByDate              []DateStat    `json:"byDate"`    // date ascending
	ByProject           []ProjectStat `json:"byProject"` // cost descending
}

// Aggregator folds entry sets into UsageStats. The location used for
// date-key derivation is resolved once at construction, never per entry,
// so one pass can never mix calendars across a DST boundary.
type Aggregator struct {
	location *time.Location
}

// NewAggregator creates an Aggregator grouping dates in loc.
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{location: loc}
}

// Aggregate folds the entry set into overall, per-model, per-date, and
// per-project statistics in a single pass. An empty input yields a
// zero-valued result with empty rollups.
func (a *Aggregator) Aggregate(entries []model.UsageEntry, sessionCount int) UsageStats {
	loc := a.location

	stats := UsageStats{SessionCount: sessionCount}
	byModel := make(map[string]*ModelStat)
	byDate := make(map[string]*DateStat)
	byProject := make(map[string]*ProjectStat)

	for _, e := range entries {
		stats.InputTokens += e.InputTokens
		stats.OutputTokens += e.OutputTokens
		stats.CacheCreationTokens += e.CacheCreationTokens
		stats.CacheReadTokens += e.CacheReadTokens
		stats.TotalCost += e.CostUSD
		stats.EntryCount++

		modelName := e.Model
		if modelName == "" {
			modelName = "unknown"
		}
		ms, ok := byModel[modelName]
		if !ok {
			ms = &ModelStat{Model: modelName}
			byModel[modelName] = ms
		}
		addModel(ms, e)

		dateKey := e.Timestamp.In(loc).Format("2006-01-02")
		ds, ok := byDate[dateKey]
		if !ok {
			ds = &DateStat{Date: dateKey}
			byDate[dateKey] = ds
		}
		addDate(ds, e)

		ps, ok := byProject[e.Project]
		if !ok {
			ps = &ProjectStat{Project: e.Project}
			byProject[e.Project] = ps
		}
		addProject(ps, e)
	}
	stats.TotalTokens = stats.InputTokens + stats.OutputTokens +
		stats.CacheCreationTokens + stats.CacheReadTokens

	stats.ByModel = make([]ModelStat, 0, len(byModel))
	for _, ms := range byModel {
		stats.ByModel = append(stats.ByModel, *ms)
	}
	sort.Slice(stats.ByModel, func(i, j int) bool {
		if stats.ByModel[i].TotalCost == stats.ByModel[j].TotalCost {
			return stats.ByModel[i].Model < stats.ByModel[j].Model
		}
		return stats.ByModel[i].TotalCost > stats.ByModel[j].TotalCost
	})

	stats.ByDate = make([]DateStat, 0, len(byDate))
	for _, ds := range byDate {
		stats.ByDate = append(stats.ByDate, *ds)
	}
	sort.Slice(stats.ByDate, func(i, j int) bool {
		return stats.ByDate[i].Date < stats.ByDate[j].Date
	})

	stats.ByProject = make([]ProjectStat, 0, len(byProject))
	for _, ps := range byProject {
		stats.ByProject = append(stats.ByProject, *ps)
	}
	sort.Slice(stats.ByProject, func(i, j int) bool {
		if stats.ByProject[i].TotalCost == stats.ByProject[j].TotalCost {
			return stats.ByProject[i].Project < stats.ByProject[j].Project
		}
		return stats.ByProject[i].TotalCost > stats.ByProject[j].TotalCost
	})

	return stats
}

// AggregateRange aggregates only entries within [from, to). A zero or
// inverted range is caller-side misuse and surfaces as an explicit
// error rather than an empty result.
func (a *Aggregator) AggregateRange(entries []model.UsageEntry, from, to time.Time, sessionCount int) (UsageStats, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return UsageStats{}, ErrInvalidRange
	}

	filtered := make([]model.UsageEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			filtered = append(filtered, e)
		}
	}
	return a.Aggregate(filtered, sessionCount), nil
}

// FilterToday returns the entries falling on the same calendar day as
// ref in the aggregator's location.
func (a *Aggregator) FilterToday(entries []model.UsageEntry, ref time.Time) []model.UsageEntry {
	loc := a.location
	refKey := ref.In(loc).Format("2006-01-02")

	var filtered []model.UsageEntry
	for _, e := range entries {
		if e.Timestamp.In(loc).Format("2006-01-02") == refKey {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// HourlyCosts buckets the cost of ref's calendar day by local hour into
// a fixed 24-element array, regardless of how many hours have elapsed.
func (a *Aggregator) HourlyCosts(entries []model.UsageEntry, ref time.Time) [24]float64 {
	loc := a.location
	refKey := ref.In(loc).Format("2006-01-02")

	var buckets [24]float64
	for _, e := range entries {
		local := e.Timestamp.In(loc)
		if local.Format("2006-01-02") != refKey {
			continue
		}
		buckets[local.Hour()] += e.CostUSD
	}
	return buckets
}

// EnsureToday guarantees the daily rollup contains a (possibly zero)
// entry for ref's calendar day, preserving ascending order, so consumers
// never special-case "no activity yet". Applying it twice is a no-op.
func (a *Aggregator) EnsureToday(daily []DateStat, ref time.Time) []DateStat {
	todayKey := ref.In(a.location).Format("2006-01-02")
	for _, d := range daily {
		if d.Date == todayKey {
			return daily
		}
	}

	out := append(daily, DateStat{Date: todayKey})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

func addModel(ms *ModelStat, e model.UsageEntry) {
	ms.InputTokens += e.InputTokens
	ms.OutputTokens += e.OutputTokens
	ms.CacheCreationTokens += e.CacheCreationTokens
	ms.CacheReadTokens += e.CacheReadTokens
	ms.TotalTokens += e.TotalTokens()
	ms.TotalCost += e.CostUSD
	ms.EntryCount++
}

func addDate(ds *DateStat, e model.UsageEntry) {
	ds.InputTokens += e.InputTokens
	ds.OutputTokens += e.OutputTokens
	ds.CacheCreationTokens += e.CacheCreationTokens
	ds.CacheReadTokens += e.CacheReadTokens
	ds.TotalTokens += e.TotalTokens()
	ds.TotalCost += e.CostUSD
	ds.EntryCount++
}

func addProject(ps *ProjectStat, e model.UsageEntry) {
	ps.InputTokens += e.InputTokens
	ps.OutputTokens += e.OutputTokens
	ps.CacheCreationTokens += e.CacheCreationTokens
	ps.CacheReadTokens += e.CacheReadTokens
	ps.TotalTokens += e.TotalTokens()
	ps.TotalCost += e.CostUSD
	ps.EntryCount++
}
