package main

import (
	"fmt"
	"io"
	"time"

	"jtvview/internal/guide"
	"jtvview/internal/model"
)

// renderText prints a snapshot as a title line followed by one heading per
// day and one line per program.
func renderText(w io.Writer, title string, snap *guide.Snapshot, dateLayout, timeLayout string, loc *time.Location) {
	fmt.Fprintln(w, title)
	if snap == nil {
		return
	}
	for _, g := range snap.Groups {
		renderDay(w, g, dateLayout, timeLayout, loc)
	}
}

func renderDay(w io.Writer, g model.DayGroup, dateLayout, timeLayout string, loc *time.Location) {
	fmt.Fprintf(w, "\n%s\n", g.Date.Format(dateLayout))
	for _, e := range g.Entries {
		fmt.Fprintf(w, "  %s  %s\n", e.Timestamp.In(loc).Format(timeLayout), e.Title)
	}
}
