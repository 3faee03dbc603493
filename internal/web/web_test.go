package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jtvview/internal/config"
	"jtvview/internal/jtv/jtvtest"
)

var weekStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	ndx, pdt := jtvtest.Build(jtvtest.Week(weekStart, 0))
	base := jtvtest.WritePair(t, dir, "channel", ndx, pdt)

	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.SetOffset(0)
	}
	srv, err := NewServer(cfg, time.UTC, []string{base + ".ndx", filepath.Join(dir, "missing.ndx")})
	if err != nil {
		t.Fatal(err)
	}
	return srv, base
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
}

func TestGuides(t *testing.T) {
	srv, base := newTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/guides", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var got []guideSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 guides, got %d", len(got))
	}
	if got[0].BasePath != base || got[0].Entries != 21 || got[0].Days != 7 || got[0].Error != "" {
		t.Fatalf("unexpected first guide %+v", got[0])
	}
	if got[0].Title != "channel — jtvview" {
		t.Fatalf("title = %q", got[0].Title)
	}
	if got[1].Error == "" || !strings.Contains(got[1].Error, "missing.ndx") {
		t.Fatalf("expected open failure for second guide, got %+v", got[1])
	}
}

func TestGuideDays(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/guides/0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var got guideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(got.Days))
	}
	first := got.Days[0]
	if first.Date != "2024-03-04" || first.Heading != "Monday, 4 March 2024" {
		t.Fatalf("unexpected first day %q / %q", first.Date, first.Heading)
	}
	if len(first.Entries) != 3 || first.Entries[0].Time != "07:00" || first.Entries[0].Title != "Новости" {
		t.Fatalf("unexpected entries %+v", first.Entries)
	}

	if rec := do(t, srv.Handler(), http.MethodGet, "/api/guides/1", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("failed guide: status %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/guides/9", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown guide: status %d", rec.Code)
	}
}

func TestTimezone(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	if rec := do(t, h, http.MethodPut, "/api/timezone", `{"offset_seconds": 100000}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range offset: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/timezone", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing offset: status %d", rec.Code)
	}

	rec := do(t, h, http.MethodPut, "/api/timezone", `{"offset_seconds": 3600}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/timezone", "")
	if !strings.Contains(rec.Body.String(), `"offset_seconds":3600`) {
		t.Fatalf("offset not stored: %s", rec.Body.String())
	}

	var got guideResponse
	rec = do(t, h, http.MethodGet, "/api/guides/0", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.OffsetSeconds != 3600 || got.Days[0].Entries[0].Time != "06:00" {
		t.Fatalf("guide not re-decoded: offset %d, first %+v", got.OffsetSeconds, got.Days[0].Entries[0])
	}
}

func TestReloadFollowsLocalOffset(t *testing.T) {
	saved := time.Local
	t.Cleanup(func() { time.Local = saved })
	time.Local = time.FixedZone("winter", 3600)

	srv, _ := newTestServer(t, config.DefaultConfig())
	h := srv.Handler()

	firstTime := func() string {
		t.Helper()
		var got guideResponse
		rec := do(t, h, http.MethodGet, "/api/guides/0", "")
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		return got.Days[0].Entries[0].Time
	}

	if rec := do(t, h, http.MethodGet, "/api/timezone", ""); !strings.Contains(rec.Body.String(), `"offset_seconds":3600`) {
		t.Fatalf("initial offset: %s", rec.Body.String())
	}
	if got := firstTime(); got != "06:00" {
		t.Fatalf("first program at %s, want 06:00", got)
	}

	time.Local = time.FixedZone("summer", 7200)
	if rec := do(t, h, http.MethodPost, "/api/reload", ""); rec.Code != http.StatusOK {
		t.Fatalf("reload: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/timezone", ""); !strings.Contains(rec.Body.String(), `"offset_seconds":7200`) {
		t.Fatalf("offset after reload: %s", rec.Body.String())
	}
	if got := firstTime(); got != "05:00" {
		t.Fatalf("first program at %s after reload, want 05:00", got)
	}

	// A pinned offset no longer follows the machine.
	do(t, h, http.MethodPut, "/api/timezone", `{"offset_seconds": 0}`)
	time.Local = time.FixedZone("winter", 3600)
	do(t, h, http.MethodPost, "/api/reload", "")
	if got := firstTime(); got != "07:00" {
		t.Fatalf("first program at %s with pinned offset, want 07:00", got)
	}
}

func TestCalendar(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/guides/0/calendar.ics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Count(body, "BEGIN:VEVENT") != 21 {
		t.Fatalf("expected 21 events in %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type %q", ct)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/guides/1/calendar.ics", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("failed guide: status %d", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "channel — jtvview", "Monday, 4 March 2024", "Фильм «Ирония судьбы»"} {
		if !strings.Contains(body, want) && !strings.Contains(body, escapeGuillemets(want)) {
			t.Errorf("index missing %q", want)
		}
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/?guide=1", "")
	if !strings.Contains(rec.Body.String(), "missing.ndx") {
		t.Errorf("failed guide page does not show the error")
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/?guide=x", ""); rec.Code != http.StatusNotFound {
		t.Errorf("bad guide id: status %d", rec.Code)
	}
}

// escapeGuillemets returns s as html/template may render it.
func escapeGuillemets(s string) string {
	return strings.NewReplacer("«", "&laquo;", "»", "&raquo;").Replace(s)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SetOffset(0)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	srv, _ := newTestServer(t, cfg)
	h := srv.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health behind auth: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/guides", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/guides", nil)
	req.SetBasicAuth("u", "p")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated: %d", rec.Code)
	}
}

func TestScheduleRefresh(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	stop, err := srv.ScheduleRefresh("")
	if err != nil {
		t.Fatal(err)
	}
	stop()

	if _, err := srv.ScheduleRefresh("not a spec"); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	stop, err = srv.ScheduleRefresh("@every 1h")
	if err != nil {
		t.Fatal(err)
	}
	stop()
}
