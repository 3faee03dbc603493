package guide

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"jtvview/internal/jtv"
	appLog "jtvview/internal/log"
)

// DefaultSettle is how long Watch waits after the last change before
// decoding, so that rewriting both files triggers a single reload.
const DefaultSettle = 250 * time.Millisecond

// ReloadFunc receives the outcome of every reload triggered by Watch. It
// runs on the watch goroutine and may call Watch or StopWatch.
type ReloadFunc func(*Snapshot, error)

type watcher struct {
	w    *fsnotify.Watcher
	done chan struct{}

	stopped    atomic.Bool
	inCallback atomic.Bool
}

// Watch reopens the current guide whenever its .ndx or .pdt file is
// written, created or renamed into place. The directory is watched rather
// than the files so that atomic replacements are seen. Calling Watch again
// replaces the previous watch. Opening another guide ends the watch.
func (s *Session) Watch(settle time.Duration, fn ReloadFunc) error {
	s.mu.Lock()
	base, gen := s.basePath, s.opens
	s.mu.Unlock()
	if base == "" {
		return errors.New("watch: no guide open")
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatchLocked()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(base)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	s.watch = &watcher{w: w, done: make(chan struct{})}
	go s.watchLoop(s.watch, base, gen, settle, fn)

	appLog.Info("watching guide", "base", base)
	return nil
}

// StopWatch stops a running watch, if any. No reload starts after it
// returns. Called from a ReloadFunc it does not wait for that callback.
func (s *Session) StopWatch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatchLocked()
}

func (s *Session) stopWatchLocked() {
	if s.watch == nil {
		return
	}
	wt := s.watch
	s.watch = nil
	wt.stopped.Store(true)
	_ = wt.w.Close()
	if !wt.inCallback.Load() {
		<-wt.done
	}
}

func (s *Session) watchLoop(wt *watcher, base string, gen uint64, settle time.Duration, fn ReloadFunc) {
	defer close(wt.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-wt.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !belongsTo(ev.Name, base) {
				continue
			}
			appLog.Debug("guide file changed", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if wt.stopped.Load() {
				return
			}
			snap, ok, err := s.reopen(base, gen)
			if !ok {
				appLog.Info("guide replaced, watch ended", "base", base)
				_ = wt.w.Close()
				return
			}
			if fn != nil {
				wt.inCallback.Store(true)
				fn(snap, err)
				wt.inCallback.Store(false)
			}
		case err, ok := <-wt.w.Errors:
			if !ok {
				return
			}
			appLog.Error("guide watcher error", err, "base", base)
		}
	}
}

// belongsTo reports whether name is the index or data file of base.
func belongsTo(name, base string) bool {
	name = filepath.Clean(name)
	if !strings.EqualFold(jtv.BasePath(name), filepath.Clean(base)) {
		return false
	}
	return len(name) != len(filepath.Clean(base))
}
