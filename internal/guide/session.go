// Package guide holds the state a viewer keeps around the decoder: the
// currently open guide and the source time-zone offset applied to it.
package guide

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"jtvview/internal/jtv"
	appLog "jtvview/internal/log"
	"jtvview/internal/model"
)

// AppName is shown in titles when no guide is open.
const AppName = "jtvview"

// Snapshot is the result of the last successful decode.
type Snapshot struct {
	BasePath      string
	OffsetSeconds int
	DecodedAt     time.Time
	Entries       []model.ProgramEntry
	Groups        []model.DayGroup
}

// Session tracks one open guide. It is safe for concurrent use; decodes
// are serialized and each one reads the offset exactly once.
type Session struct {
	offset atomic.Int64

	// loc is the location used for day grouping; nil means time.Local.
	loc *time.Location

	mu       sync.Mutex
	basePath string
	current  *Snapshot
	// opens counts calls to Open; a watch only reloads while it is unchanged.
	opens uint64

	watchMu sync.Mutex
	watch   *watcher
}

// NewSession creates a session with the given source offset in seconds.
func NewSession(offsetSeconds int, loc *time.Location) (*Session, error) {
	if err := jtv.ValidateOffset(offsetSeconds); err != nil {
		return nil, err
	}
	s := &Session{loc: loc}
	s.offset.Store(int64(offsetSeconds))
	return s, nil
}

// Offset returns the currently configured source offset in seconds.
func (s *Session) Offset() int { return int(s.offset.Load()) }

// BasePath returns the base path of the open guide, or "" if none.
func (s *Session) BasePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basePath
}

// Current returns the last successful decode, or nil.
func (s *Session) Current() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Title mirrors a window title: the open guide's file name followed by the
// application name, or just the application name.
func (s *Session) Title() string {
	base := s.BasePath()
	if base == "" {
		return AppName
	}
	return filepath.Base(base) + " — " + AppName
}

// Open decodes the guide at path (with or without extension). Any previous
// state is cleared first, so a failed open leaves nothing displayed.
func (s *Session) Open(path string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.openLocked(jtv.BasePath(path))
}

// reopen decodes base again unless another guide has been opened since
// generation gen. ok is false when the guide was replaced.
func (s *Session) reopen(base string, gen uint64) (snap *Snapshot, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opens != gen {
		return nil, false, nil
	}
	snap, err = s.openLocked(base)
	return snap, true, err
}

// Reload decodes the open guide again. It is a no-op returning nil when no
// guide is open.
func (s *Session) Reload() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.basePath == "" {
		return nil, nil
	}
	return s.openLocked(s.basePath)
}

// SetOffset validates and stores a new offset, then re-decodes the open
// guide if there is one.
func (s *Session) SetOffset(seconds int) (*Snapshot, error) {
	if err := jtv.ValidateOffset(seconds); err != nil {
		return nil, err
	}
	s.offset.Store(int64(seconds))
	appLog.Info("time zone offset changed", "offset_seconds", seconds)
	return s.Reload()
}

func (s *Session) openLocked(base string) (*Snapshot, error) {
	s.basePath = ""
	s.current = nil

	offset := s.Offset()
	entries, err := jtv.DecodeFiles(base, offset)
	if err != nil {
		appLog.Error("guide decode failed", err, "base", base, "offset_seconds", offset)
		return nil, err
	}

	snap := &Snapshot{
		BasePath:      base,
		OffsetSeconds: offset,
		DecodedAt:     time.Now(),
		Entries:       entries,
		Groups:        model.GroupByDay(entries, s.loc),
	}
	s.basePath = base
	s.current = snap

	appLog.Info("guide decoded", "base", base, "entries", len(entries), "days", len(snap.Groups), "offset_seconds", offset)
	return snap, nil
}
