package guide

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"jtvview/internal/jtv"
	"jtvview/internal/jtv/jtvtest"
)

var weekStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func writeWeek(t *testing.T, dir, name string, offset int) string {
	t.Helper()
	ndx, pdt := jtvtest.Build(jtvtest.Week(weekStart, offset))
	return jtvtest.WritePair(t, dir, name, ndx, pdt)
}

func TestTargets(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"pair collapses", []string{"/tv/A.pdt", "/tv/A.ndx"}, []string{"/tv/A.pdt"}},
		{"duplicate pair", []string{"/tv/A.ndx", "/tv/A.pdt", "/tv/A.ndx", "/tv/A.pdt"}, []string{"/tv/A.ndx"}},
		{"two guides", []string{"/tv/B.ndx", "/tv/A.ndx", "/tv/B.pdt"}, []string{"/tv/A.ndx", "/tv/B.pdt"}},
		{"mixed case", []string{"/tv/A.NDX", "/tv/A.Pdt"}, []string{"/tv/A.Pdt"}},
		{"bare base", []string{"/tv/A", "/tv/A.ndx"}, []string{"/tv/A"}},
		{"empty", nil, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Targets(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Targets(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSessionOpen(t *testing.T) {
	dir := t.TempDir()
	base := writeWeek(t, dir, "first", 0)

	s, err := NewSession(0, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if s.Title() != AppName {
		t.Fatalf("title before open = %q", s.Title())
	}

	snap, err := s.Open(base + ".PDT")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if snap.BasePath != base || s.BasePath() != base {
		t.Fatalf("base path = %q / %q", snap.BasePath, s.BasePath())
	}
	if len(snap.Entries) != 21 || len(snap.Groups) != 7 {
		t.Fatalf("got %d entries in %d groups", len(snap.Entries), len(snap.Groups))
	}
	if s.Title() != "first — "+AppName {
		t.Fatalf("title = %q", s.Title())
	}
	if s.Current() != snap {
		t.Fatal("Current does not return the last snapshot")
	}
}

func TestSessionOpenFailureClearsState(t *testing.T) {
	dir := t.TempDir()
	base := writeWeek(t, dir, "good", 0)

	s, _ := NewSession(0, time.UTC)
	if _, err := s.Open(base); err != nil {
		t.Fatal(err)
	}

	_, err := s.Open(filepath.Join(dir, "absent.ndx"))
	if jtv.KindOf(err) != jtv.OpenFailure {
		t.Fatalf("expected OpenFailure, got %v", err)
	}
	if s.BasePath() != "" || s.Current() != nil {
		t.Fatal("failed open must clear the previous guide")
	}
	if snap, err := s.Reload(); snap != nil || err != nil {
		t.Fatalf("Reload with nothing open = %v, %v", snap, err)
	}
}

func TestSessionSetOffset(t *testing.T) {
	dir := t.TempDir()
	base := writeWeek(t, dir, "tz", 10800)

	s, _ := NewSession(0, time.UTC)
	before, err := s.Open(base)
	if err != nil {
		t.Fatal(err)
	}

	after, err := s.SetOffset(10800)
	if err != nil {
		t.Fatal(err)
	}
	if s.Offset() != 10800 || after.OffsetSeconds != 10800 {
		t.Fatalf("offset not applied: %d / %d", s.Offset(), after.OffsetSeconds)
	}
	if after.BasePath != base {
		t.Fatalf("re-decode used %q", after.BasePath)
	}
	for i := range before.Entries {
		d := after.Entries[i].Timestamp.Sub(before.Entries[i].Timestamp)
		if d != -3*time.Hour {
			t.Fatalf("entry %d shifted by %v", i, d)
		}
	}
	if want := weekStart.Add(7 * time.Hour); !after.Entries[0].Timestamp.Equal(want) {
		t.Fatalf("first entry = %v, want %v", after.Entries[0].Timestamp, want)
	}

	if _, err := s.SetOffset(90000); err == nil {
		t.Fatal("out-of-range offset accepted")
	}
	if s.Offset() != 10800 {
		t.Fatal("rejected offset must not be stored")
	}
}

func TestSetOffsetWithoutGuide(t *testing.T) {
	s, _ := NewSession(0, nil)
	snap, err := s.SetOffset(-3600)
	if err != nil || snap != nil {
		t.Fatalf("SetOffset without guide = %v, %v", snap, err)
	}
	if s.Offset() != -3600 {
		t.Fatalf("offset = %d", s.Offset())
	}
}

func TestNewSessionRejectsOffset(t *testing.T) {
	if _, err := NewSession(-86401, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	base := writeWeek(t, dir, "live", 0)

	s, _ := NewSession(0, time.UTC)
	if _, err := s.Open(base); err != nil {
		t.Fatal(err)
	}

	type result struct {
		snap *Snapshot
		err  error
	}
	got := make(chan result, 4)
	if err := s.Watch(50*time.Millisecond, func(snap *Snapshot, err error) {
		got <- result{snap, err}
	}); err != nil {
		t.Fatal(err)
	}
	defer s.StopWatch()

	ndx, pdt := jtvtest.Build([]jtvtest.Entry{{RawTime: jtvtest.RawTime(weekStart, 0), Text: "Новый выпуск"}})
	if err := os.WriteFile(base+".pdt", pdt, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(base+".ndx", ndx, 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-got:
			if r.err != nil {
				continue
			}
			if len(r.snap.Entries) == 1 && r.snap.Entries[0].Title == "Новый выпуск" {
				return
			}
		case <-deadline:
			t.Fatal("watch did not reload the guide")
		}
	}
}

func TestWatchEndsWhenAnotherGuideOpens(t *testing.T) {
	dir := t.TempDir()
	first := writeWeek(t, dir, "first", 0)
	second := writeWeek(t, dir, "second", 0)

	s, _ := NewSession(0, time.UTC)
	if _, err := s.Open(first); err != nil {
		t.Fatal(err)
	}
	calls := make(chan struct{}, 4)
	if err := s.Watch(20*time.Millisecond, func(*Snapshot, error) { calls <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	defer s.StopWatch()

	s.watchMu.Lock()
	wt := s.watch
	s.watchMu.Unlock()

	if _, err := s.Open(second); err != nil {
		t.Fatal(err)
	}
	ndx, pdt := jtvtest.Build([]jtvtest.Entry{{RawTime: jtvtest.RawTime(weekStart, 0), Text: "Повтор"}})
	jtvtest.WritePair(t, dir, "first", ndx, pdt)

	select {
	case <-wt.done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch on the replaced guide kept running")
	}
	if got := s.BasePath(); got != second {
		t.Fatalf("BasePath = %q, want %q", got, second)
	}
	if snap := s.Current(); snap == nil || len(snap.Entries) != 21 {
		t.Fatal("current guide was replaced by the old one")
	}
	select {
	case <-calls:
		t.Fatal("reload callback ran for a replaced guide")
	default:
	}
}

func TestReloadFuncMayStopWatch(t *testing.T) {
	dir := t.TempDir()
	base := writeWeek(t, dir, "live", 0)

	s, _ := NewSession(0, time.UTC)
	if _, err := s.Open(base); err != nil {
		t.Fatal(err)
	}
	stopped := make(chan struct{})
	var once sync.Once
	if err := s.Watch(20*time.Millisecond, func(*Snapshot, error) {
		s.StopWatch()
		once.Do(func() { close(stopped) })
	}); err != nil {
		t.Fatal(err)
	}

	ndx, pdt := jtvtest.Build([]jtvtest.Entry{{RawTime: jtvtest.RawTime(weekStart, 0), Text: "Новый выпуск"}})
	jtvtest.WritePair(t, dir, "live", ndx, pdt)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("StopWatch inside the reload callback did not return")
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watch != nil {
		t.Fatal("watch still registered after StopWatch")
	}
}

func TestWatchRequiresGuide(t *testing.T) {
	s, _ := NewSession(0, nil)
	if err := s.Watch(0, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBelongsTo(t *testing.T) {
	base := filepath.Join("tv", "guide")
	for name, want := range map[string]bool{
		base + ".ndx":                     true,
		base + ".PDT":                     true,
		base:                              false,
		base + ".txt":                     false,
		filepath.Join("tv", "other.ndx"):  false,
		filepath.Join("tv", "guide2.pdt"): false,
	} {
		if got := belongsTo(name, base); got != want {
			t.Errorf("belongsTo(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSessionDecodeErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	ndx, pdt := jtvtest.Build([]jtvtest.Entry{{RawTime: 1, Text: "a"}})
	ndx[2] = 0x01
	base := jtvtest.WritePair(t, dir, "bad", ndx, pdt)

	s, _ := NewSession(0, nil)
	_, err := s.Open(base)
	if !errors.Is(err, jtv.ErrMalformedRecord) {
		t.Fatalf("expected MalformedRecord, got %v", err)
	}
}
