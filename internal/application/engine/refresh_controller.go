package engine

import (
	"sync"
	"time"

	"github.com/penwyp/go-claude-usage/internal/util"
)

// Trigger identifies the source of a refresh request.
type Trigger int

const (
	TriggerDirectoryChanged Trigger = iota
	TriggerDayChanged
	TriggerClockChanged
	TriggerAppActive
	TriggerWindowFocused
	TriggerFallbackTimer
)

// String returns the trigger name for logging.
func (t Trigger) String() string {
	switch t {
	case TriggerDirectoryChanged:
		return "directory_changed"
	case TriggerDayChanged:
		return "day_changed"
	case TriggerClockChanged:
		return "clock_changed"
	case TriggerAppActive:
		return "app_active"
	case TriggerWindowFocused:
		return "window_focused"
	case TriggerFallbackTimer:
		return "fallback_timer"
	default:
		return "unknown"
	}
}

// bypassesDebounce reports whether this trigger is correctness-relevant
// rather than noise. A day boundary or a clock jump must reload even
// inside the debounce window; the fallback timer always fires on its own
// schedule to cover missed notifications after sleep/wake.
func (t Trigger) bypassesDebounce() bool {
	switch t {
	case TriggerDayChanged, TriggerClockChanged, TriggerFallbackTimer:
		return true
	default:
		return false
	}
}

// RefreshController merges asynchronous refresh triggers into one
// debounced reload action. A reload in progress is never interrupted:
// triggers landing mid-reload are skipped, relying on the fallback timer
// to pick up anything they would have carried.
type RefreshController struct {
	clock       util.Clock
	reload      func()
	minInterval time.Duration
	fallback    time.Duration

	mu           sync.Mutex
	lastReload   time.Time
	lastKnownDay string
	inProgress   bool
	running      bool
	stop         chan struct{}
}

// dayCheckInterval bounds how late a day rollover can be noticed when no
// other trigger fires around midnight.
const dayCheckInterval = 30 * time.Second

// NewRefreshController creates a controller invoking reload for each
// accepted trigger.
func NewRefreshController(clock util.Clock, minInterval, fallbackInterval time.Duration, reload func()) *RefreshController {
	return &RefreshController{
		clock:       clock,
		reload:      reload,
		minInterval: minInterval,
		fallback:    fallbackInterval,
	}
}

// Start arms the fallback timer and the day-rollover check. Calling
// Start on a running controller is a no-op.
func (rc *RefreshController) Start() {
	rc.mu.Lock()
	if rc.running {
		rc.mu.Unlock()
		return
	}
	rc.running = true
	rc.stop = make(chan struct{})
	rc.lastKnownDay = util.DayKey(rc.clock.Now(), util.GetTimeProvider().Location())
	stop := rc.stop
	rc.mu.Unlock()

	go rc.timerLoop(stop, rc.fallback, func() {
		rc.Notify(TriggerFallbackTimer)
	})
	go rc.timerLoop(stop, dayCheckInterval, rc.checkDayRollover)
}

// Stop disarms all triggers. Idempotent; a reload already in flight is
// allowed to finish.
func (rc *RefreshController) Stop() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !rc.running {
		return
	}
	rc.running = false
	close(rc.stop)
}

// Notify requests a reload on behalf of a trigger. Bursty triggers are
// absorbed by the debounce guard; day/clock/fallback triggers bypass it.
// The reload runs synchronously in the caller's goroutine so async
// notification sources hand off to the single-owner reload path instead
// of mutating shared state themselves.
func (rc *RefreshController) Notify(trigger Trigger) {
	now := rc.clock.Now()

	rc.mu.Lock()
	if !rc.running {
		rc.mu.Unlock()
		return
	}

	// Day rollovers ride along on every trigger: whenever the tracked
	// day no longer matches today, the reload is correctness-relevant.
	day := util.DayKey(now, util.GetTimeProvider().Location())
	dayChanged := day != rc.lastKnownDay
	if dayChanged {
		rc.lastKnownDay = day
	}

	if !trigger.bypassesDebounce() && !dayChanged {
		if !rc.lastReload.IsZero() && now.Sub(rc.lastReload) < rc.minInterval {
			rc.mu.Unlock()
			util.LogDebugf("Refresh trigger %s debounced", trigger)
			return
		}
	}
	if rc.inProgress {
		rc.mu.Unlock()
		util.LogDebugf("Refresh trigger %s skipped: reload in progress", trigger)
		return
	}
	rc.inProgress = true
	rc.lastReload = now
	rc.mu.Unlock()

	util.LogDebugf("Refresh trigger %s accepted", trigger)
	rc.reload()

	rc.mu.Lock()
	rc.inProgress = false
	rc.mu.Unlock()
}

// checkDayRollover fires a day-changed trigger when the tracked day no
// longer matches today.
func (rc *RefreshController) checkDayRollover() {
	rc.mu.Lock()
	day := util.DayKey(rc.clock.Now(), util.GetTimeProvider().Location())
	changed := rc.running && day != rc.lastKnownDay
	rc.mu.Unlock()

	if changed {
		rc.Notify(TriggerDayChanged)
	}
}

// timerLoop invokes fire every interval until stop closes. The loop
// checks for shutdown after each sleep, so a stopped controller stops
// firing at its next wake rather than blocking Stop.
func (rc *RefreshController) timerLoop(stop chan struct{}, interval time.Duration, fire func()) {
	for {
		rc.clock.Sleep(interval)
		select {
		case <-stop:
			return
		default:
		}
		fire()
	}
}
