package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/penwyp/go-claude-usage/internal/util"
)

// DirectoryWatcher subscribes to filesystem notifications on the
// projects root and coalesces event bursts within a short window before
// signaling, so one logical write (which fsnotify reports as several
// events) produces one notification.
type DirectoryWatcher struct {
	root     string
	coalesce time.Duration
	notify   func()

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDirectoryWatcher creates a watcher calling notify after each
// coalesced burst of changes under root.
func NewDirectoryWatcher(root string, coalesce time.Duration, notify func()) (*DirectoryWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dw := &DirectoryWatcher{
		root:     root,
		coalesce: coalesce,
		notify:   notify,
		watcher:  watcher,
		stop:     make(chan struct{}),
	}

	if err := dw.addTree(root); err != nil {
		// Root may not exist yet; keep watching so it is picked up when
		// the fallback timer triggers a rescan.
		util.LogDebugf("Directory watch setup incomplete for %s: %v", root, err)
	}

	dw.wg.Add(1)
	go dw.processEvents()
	return dw, nil
}

// addTree watches root and all its subdirectories.
func (dw *DirectoryWatcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return dw.watcher.Add(path)
		}
		return nil
	})
}

// processEvents forwards relevant events through the coalescing timer.
func (dw *DirectoryWatcher) processEvents() {
	defer dw.wg.Done()

	// The timer starts disarmed; each relevant event re-arms it, so the
	// notification fires once per quiet burst.
	timer := time.NewTimer(dw.coalesce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !dw.relevant(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// A new project directory must be watched too.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = dw.watcher.Add(event.Name)
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(dw.coalesce)

		case <-timer.C:
			dw.notify()

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			util.LogErrorf("File monitoring error: %v", err)

		case <-dw.stop:
			return
		}
	}
}

// relevant reports whether an event can affect the usage dataset.
func (dw *DirectoryWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if strings.HasSuffix(strings.ToLower(event.Name), ".jsonl") {
		return true
	}
	// Directory-level events (new project dirs) matter as well.
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

// Close stops event processing. Idempotent via the engine's lifecycle.
func (dw *DirectoryWatcher) Close() error {
	close(dw.stop)
	err := dw.watcher.Close()
	dw.wg.Wait()
	return err
}
