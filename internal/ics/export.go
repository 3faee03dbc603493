package ics

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "jtvview/internal/log"
	"jtvview/internal/model"
)

// DefaultLastDuration is the length given to the final program, which has
// no following entry to end it.
const DefaultLastDuration = 30 * time.Minute

// ExportOptions controls calendar generation.
type ExportOptions struct {
	// Name becomes X-WR-CALNAME and the UID prefix; usually the guide's
	// base file name.
	Name string
	// LastDuration overrides DefaultLastDuration when positive.
	LastDuration time.Duration
	// Now stamps DTSTAMP; zero means time.Now().
	Now time.Time
}

// Build converts entries to a calendar with one VEVENT per program. Each
// program ends when the next one starts; programs followed by an entry that
// is not later than themselves get LastDuration.
func Build(entries []model.ProgramEntry, opts ExportOptions) *ical.Calendar {
	last := opts.LastDuration
	if last <= 0 {
		last = DefaultLastDuration
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := opts.Name
	if name == "" {
		name = "jtvview"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//jtvview//JTV program guide//EN")
	cal.SetXWRCalName(name)

	uidPrefix := uidSafe(name)
	for i, e := range entries {
		end := e.Timestamp.Add(last)
		if i+1 < len(entries) && entries[i+1].Timestamp.After(e.Timestamp) {
			end = entries[i+1].Timestamp
		}

		ev := cal.AddEvent(fmt.Sprintf("%s-%d-%d@jtvview", uidPrefix, i+1, e.Timestamp.Unix()))
		ev.SetDtStampTime(now)
		ev.SetStartAt(e.Timestamp)
		ev.SetEndAt(end)
		ev.SetSummary(e.Title)
	}
	return cal
}

// Export writes entries as an iCalendar stream to w.
func Export(w io.Writer, entries []model.ProgramEntry, opts ExportOptions) error {
	if w == nil {
		return errors.New("ics: nil writer")
	}
	cal := Build(entries, opts)
	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("ics: serialize: %w", err)
	}
	appLog.Debug("ics export completed", "name", opts.Name, "event_count", len(entries))
	return nil
}

// NameFor derives a calendar name from a guide base path.
func NameFor(basePath string) string {
	return filepath.Base(basePath)
}

func uidSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
