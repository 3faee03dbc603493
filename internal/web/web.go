package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jtvview/internal/config"
	"jtvview/internal/guide"
	"jtvview/internal/ics"
	"jtvview/internal/jtv"
	appLog "jtvview/internal/log"
	"jtvview/internal/model"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Server serves decoded guides over HTTP. Each target path gets its own
// guide.Session; the time-zone offset is shared by all of them.
type Server struct {
	cfg *config.Config
	loc *time.Location
	mux *http.ServeMux

	// mu serializes reloads and guards offset and errs.
	mu       sync.Mutex
	offset   int
	targets  []string
	sessions []*guide.Session
	errs     []error
}

// NewServer opens every target once and returns a server for them. Open
// failures are kept and reported per guide rather than returned.
func NewServer(cfg *config.Config, loc *time.Location, targets []string) (*Server, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:      cfg,
		loc:      loc,
		mux:      http.NewServeMux(),
		offset:   cfg.Offset(),
		targets:  targets,
		sessions: make([]*guide.Session, len(targets)),
		errs:     make([]error, len(targets)),
	}
	for i := range targets {
		sess, err := guide.NewSession(s.offset, loc)
		if err != nil {
			return nil, err
		}
		s.sessions[i] = sess
	}
	s.ReloadAll()
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ReloadAll decodes every target again with the current offset. Without a
// pinned offset the machine's offset is read again first, so a long-running
// server follows daylight saving changes.
func (s *Server) ReloadAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off := s.cfg.Offset(); off != s.offset {
		appLog.Info("local time zone offset changed", "offset_seconds", off)
		s.offset = off
	}
	for i, target := range s.targets {
		if s.sessions[i].Offset() != s.offset {
			if _, err := s.sessions[i].SetOffset(s.offset); err != nil {
				s.errs[i] = err
				continue
			}
		}
		_, s.errs[i] = s.sessions[i].Open(target)
	}
}

// SetOffset applies a new source offset to every guide and re-decodes.
func (s *Server) SetOffset(seconds int) error {
	if err := jtv.ValidateOffset(seconds); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		snap, err := sess.SetOffset(seconds)
		if snap == nil && err == nil {
			// Nothing was open; retry the target with the new offset.
			_, err = sess.Open(s.targets[i])
		}
		s.errs[i] = err
	}
	s.cfg.SetOffset(seconds)
	s.offset = seconds
	return nil
}

// ScheduleRefresh reloads all guides on the given cron spec until the
// returned stop function is called. An empty spec schedules nothing.
func (s *Server) ScheduleRefresh(spec string) (func(), error) {
	if spec == "" {
		return func() {}, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		appLog.Info("scheduled guide reload", "refresh", spec)
		s.ReloadAll()
	}); err != nil {
		return nil, err
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "guides", len(s.targets))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="jtvview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/guides", s.handleGuides)
	s.mux.HandleFunc("GET /api/guides/{id}", s.handleGuide)
	s.mux.HandleFunc("GET /api/guides/{id}/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /api/timezone", s.handleGetTimezone)
	s.mux.HandleFunc("PUT /api/timezone", s.handlePutTimezone)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// guideSummary is the JSON shape for /api/guides.
type guideSummary struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Title         string    `json:"title"`
	BasePath      string    `json:"base_path"`
	OffsetSeconds int       `json:"offset_seconds"`
	Entries       int       `json:"entries"`
	Days          int       `json:"days"`
	DecodedAt     time.Time `json:"decoded_at,omitzero"`
	Error         string    `json:"error,omitempty"`
}

// dayDTO and entryDTO are the JSON shapes for /api/guides/{id}.
type dayDTO struct {
	Date    string     `json:"date"`
	Heading string     `json:"heading"`
	Entries []entryDTO `json:"entries"`
}

type entryDTO struct {
	Start time.Time `json:"start"`
	Time  string    `json:"time"`
	Title string    `json:"title"`
}

type guideResponse struct {
	guideSummary
	Days []dayDTO `json:"days"`
}

type timezoneRequest struct {
	OffsetSeconds *int `json:"offset_seconds"`
}

func (s *Server) summary(i int) guideSummary {
	s.mu.Lock()
	err := s.errs[i]
	s.mu.Unlock()

	sess := s.sessions[i]
	out := guideSummary{
		ID:            i,
		Name:          filepath.Base(jtv.BasePath(s.targets[i])),
		Title:         sess.Title(),
		BasePath:      jtv.BasePath(s.targets[i]),
		OffsetSeconds: sess.Offset(),
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if snap := sess.Current(); snap != nil {
		out.Entries = len(snap.Entries)
		out.Days = len(snap.Groups)
		out.DecodedAt = snap.DecodedAt
	}
	return out
}

func (s *Server) days(groups []model.DayGroup) []dayDTO {
	out := make([]dayDTO, 0, len(groups))
	for _, g := range groups {
		d := dayDTO{
			Date:    g.Date.Format(time.DateOnly),
			Heading: g.Date.Format(s.cfg.DateLayout),
			Entries: make([]entryDTO, 0, len(g.Entries)),
		}
		for _, e := range g.Entries {
			d.Entries = append(d.Entries, entryDTO{
				Start: e.Timestamp,
				Time:  e.Timestamp.In(s.loc).Format(s.cfg.TimeLayout),
				Title: e.Title,
			})
		}
		out = append(out, d)
	}
	return out
}

func (s *Server) guideID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 || id >= len(s.sessions) {
		return 0, false
	}
	return id, true
}

func (s *Server) handleGuides(w http.ResponseWriter, _ *http.Request) {
	out := make([]guideSummary, 0, len(s.sessions))
	for i := range s.sessions {
		out = append(out, s.summary(i))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	id, ok := s.guideID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown guide")
		return
	}
	resp := guideResponse{guideSummary: s.summary(id), Days: []dayDTO{}}
	if resp.Error != "" {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	if snap := s.sessions[id].Current(); snap != nil {
		resp.Days = s.days(snap.Groups)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := s.guideID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown guide")
		return
	}
	snap := s.sessions[id].Current()
	if snap == nil {
		writeError(w, http.StatusUnprocessableEntity, "guide not decoded")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ics.NameFor(snap.BasePath)+`.ics"`)
	if err := ics.Export(w, snap.Entries, ics.ExportOptions{Name: ics.NameFor(snap.BasePath)}); err != nil {
		appLog.Error("calendar export failed", err, "base", snap.BasePath)
	}
}

func (s *Server) handleGetTimezone(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"offset_seconds": s.currentOffset()})
}

func (s *Server) handlePutTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OffsetSeconds == nil {
		writeError(w, http.StatusBadRequest, "expected {\"offset_seconds\": <int>}")
		return
	}
	if err := s.SetOffset(*req.OffsetSeconds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"offset_seconds": *req.OffsetSeconds})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	s.ReloadAll()
	s.handleGuides(w, nil)
}

func (s *Server) currentOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// indexData feeds templates/index.html.
type indexData struct {
	Title         string
	OffsetSeconds int
	Error         string
	Guides        []guideSummary
	Days          []dayDTO
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Title: guide.AppName, OffsetSeconds: s.currentOffset()}
	for i := range s.sessions {
		data.Guides = append(data.Guides, s.summary(i))
	}

	id := 0
	if v := r.URL.Query().Get("guide"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= len(s.sessions) {
			http.NotFound(w, r)
			return
		}
		id = n
	}
	if id < len(s.sessions) {
		sum := data.Guides[id]
		data.Title = sum.Title
		data.Error = sum.Error
		if snap := s.sessions[id].Current(); snap != nil {
			data.Days = s.days(snap.Groups)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		appLog.Error("index render failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
