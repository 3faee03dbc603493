package model

import "time"

// ProgramEntry is a single scheduled airing decoded from a guide file pair.
// Entries keep file order; the format stores them chronologically and they
// are never re-sorted.
type ProgramEntry struct {
	// Timestamp is the airing start, normalized to UTC using the source
	// time-zone offset applied at decode time.
	Timestamp time.Time
	Title     string
}

// DayGroup is a run of consecutive entries that share a calendar date.
type DayGroup struct {
	// Date is midnight of the group's day in the location used for grouping.
	Date    time.Time
	Entries []ProgramEntry
}

// GroupByDay splits entries into DayGroups. A new group starts whenever an
// entry's date in loc differs from the date of the entry right before it, so
// unordered input may yield the same date in more than one group.
//
// If loc is nil, time.Local is used, matching how the timestamps are shown.
func GroupByDay(entries []ProgramEntry, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}

	groups := make([]DayGroup, 0)
	for _, e := range entries {
		local := e.Timestamp.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

		if n := len(groups); n == 0 || !groups[n-1].Date.Equal(day) {
			groups = append(groups, DayGroup{Date: day})
		}
		last := &groups[len(groups)-1]
		last.Entries = append(last.Entries, e)
	}
	return groups
}

// Count returns the total number of entries across groups.
func Count(groups []DayGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Entries)
	}
	return n
}

// Flatten returns all entries of groups in order.
func Flatten(groups []DayGroup) []ProgramEntry {
	out := make([]ProgramEntry, 0, Count(groups))
	for _, g := range groups {
		out = append(out, g.Entries...)
	}
	return out
}
