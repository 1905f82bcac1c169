package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"reelclip/internal/analysis"
	"reelclip/internal/intake"
	"reelclip/internal/ledger"
	"reelclip/internal/logger"
	"reelclip/internal/pipeline"
	"reelclip/internal/queue"
	"reelclip/internal/status"
	"reelclip/internal/storage"
	"reelclip/internal/worker"

	"github.com/labstack/echo/v4"
)

type testServer struct {
	e         *echo.Echo
	deps      Deps
	ledger    *ledger.Ledger
	queue     *queue.Queue
	processor *pipeline.Processor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Discard()
	l := ledger.New(db)
	q := queue.New(db, queue.Config{}, nil, log)
	deps := Deps{
		DB:         db,
		Gateway:    intake.NewGateway(db, l, q, intake.Config{AdmissionCost: 10}, log),
		Tracker:    status.NewTracker(db, q, status.Config{}, log),
		Ledger:     l,
		Queue:      q,
		AdminToken: "secret",
		Version:    "test",
		Log:        log,
	}
	return &testServer{
		e:         NewRouter(deps),
		deps:      deps,
		ledger:    l,
		queue:     q,
		processor: pipeline.NewProcessor(db, q, l, analysis.NewStub(), pipeline.Config{}, log),
	}
}

func (s *testServer) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) grant(t *testing.T, owner string, amount int64) {
	t.Helper()
	if _, err := s.ledger.Grant(context.Background(), owner, amount); err != nil {
		t.Fatalf("Grant: %v", err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSubmit(t *testing.T) {
	s := newTestServer(t)
	s.grant(t, "alice", 15)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantError string
	}{
		{"admitted", `{"owner_id":"alice","title":"Talk","source_descriptor":"uploads/alice/talk.mp4"}`, http.StatusAccepted, ""},
		{"insufficient credits", `{"owner_id":"alice","source_descriptor":"uploads/alice/second.mp4"}`, http.StatusPaymentRequired, "insufficient credits"},
		{"missing source", `{"owner_id":"alice"}`, http.StatusBadRequest, "source_descriptor is required"},
		{"unknown kind", `{"owner_id":"alice","source_descriptor":"a.mp4","source_kind":"torrent"}`, http.StatusBadRequest, "source_kind must be one of"},
		{"malformed url", `{"owner_id":"alice","source_descriptor":"ftp://host/a.mp4","source_kind":"remote_url"}`, http.StatusBadRequest, "invalid source"},
		{"malformed json", `{"owner_id":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/submit", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantError != "" {
				body := decode[map[string]string](t, rec)
				if !strings.Contains(body["error"], tt.wantError) {
					t.Fatalf("error = %q, want %q", body["error"], tt.wantError)
				}
				return
			}
			receipt := decode[intake.Receipt](t, rec)
			if receipt.JobID == "" || receipt.UploadID == "" || receipt.ProjectID == "" {
				t.Fatalf("receipt = %+v", receipt)
			}
		})
	}

	rec := s.do(t, http.MethodGet, "/api/owners/alice/balance", "", nil)
	if got := decode[map[string]any](t, rec)["balance"]; got != float64(5) {
		t.Fatalf("balance = %v, want 5", got)
	}
}

func TestSubmitFormRedirectsToStatusPage(t *testing.T) {
	s := newTestServer(t)
	s.grant(t, "bob", 10)

	form := url.Values{"owner_id": {"bob"}, "source_descriptor": {"uploads/bob/a.mp4"}}
	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("code = %d, want 303 (%s)", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get(echo.HeaderLocation)
	if !strings.HasPrefix(loc, "/uploads/") {
		t.Fatalf("Location = %q", loc)
	}

	page := s.do(t, http.MethodGet, loc, "", nil)
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "queued") {
		t.Fatalf("status page = %d %q", page.Code, page.Body.String())
	}
}

func TestStatusAndCancel(t *testing.T) {
	s := newTestServer(t)
	s.grant(t, "carol", 10)

	rec := s.do(t, http.MethodPost, "/api/submit", `{"owner_id":"carol","source_descriptor":"uploads/carol/a.mp4"}`, nil)
	receipt := decode[intake.Receipt](t, rec)

	rec = s.do(t, http.MethodGet, "/api/status/"+receipt.UploadID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	st := decode[map[string]any](t, rec)
	if st["status"] != "queued" || st["clips_generated"] != float64(0) {
		t.Fatalf("status = %v", st)
	}

	if rec := s.do(t, http.MethodPost, "/api/cancel/"+receipt.UploadID, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("cancel code = %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/api/cancel/"+receipt.UploadID, "", nil); rec.Code != http.StatusConflict {
		t.Fatalf("second cancel code = %d, want 409", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/cancel/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown cancel code = %d, want 404", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/status/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown status code = %d, want 404", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/status/"+receipt.UploadID, "", nil)
	if got := decode[map[string]any](t, rec)["status"]; got != "cancelled" {
		t.Fatalf("status after cancel = %v", got)
	}
	rec = s.do(t, http.MethodGet, "/api/owners/carol/balance", "", nil)
	if got := decode[map[string]any](t, rec)["balance"]; got != float64(10) {
		t.Fatalf("balance after cancel = %v, want 10", got)
	}
}

func TestClipsAndExport(t *testing.T) {
	s := newTestServer(t)
	s.grant(t, "dave", 10)
	rec := s.do(t, http.MethodPost, "/api/submit", `{"owner_id":"dave","source_descriptor":"uploads/dave/a.mp4"}`, nil)
	receipt := decode[intake.Receipt](t, rec)

	d, err := s.queue.TryDequeue(context.Background())
	if err != nil || d == nil {
		t.Fatalf("TryDequeue = %v, %v", d, err)
	}
	if err := s.processor.Handle(context.Background(), d); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	rec = s.do(t, http.MethodGet, "/api/projects/"+receipt.ProjectID+"/clips", "", nil)
	clips := decode[[]map[string]any](t, rec)
	if len(clips) == 0 || len(clips) > 10 || clips[0]["rank"] != float64(1) {
		t.Fatalf("clips = %v", clips)
	}

	rec = s.do(t, http.MethodGet, "/api/projects/"+receipt.ProjectID+"/clips.xlsx", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != mimeXLSX {
		t.Fatalf("export = %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatal("export is not a zip container")
	}

	rec = s.do(t, http.MethodGet, "/api/status/"+receipt.UploadID, "", nil)
	st := decode[map[string]any](t, rec)
	if st["status"] != "completed" || st["progress"] != float64(100) || st["clips_generated"] != float64(len(clips)) {
		t.Fatalf("status = %v", st)
	}

	if rec := s.do(t, http.MethodGet, "/api/projects/missing/clips", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown project code = %d", rec.Code)
	}
}

func TestGrantCredits(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		token    string
		body     string
		wantCode int
	}{
		{"missing token", "", `{"amount":50}`, http.StatusUnauthorized},
		{"wrong token", "nope", `{"amount":50}`, http.StatusUnauthorized},
		{"zero amount", "secret", `{"amount":0}`, http.StatusBadRequest},
		{"negative amount", "secret", `{"amount":-5}`, http.StatusBadRequest},
		{"granted", "secret", `{"amount":50}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/owners/erin/credits", tt.body, map[string]string{headerAdminToken: tt.token})
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	rec := s.do(t, http.MethodGet, "/api/owners/erin/balance", "", nil)
	if got := decode[map[string]any](t, rec)["balance"]; got != float64(50) {
		t.Fatalf("balance = %v, want 50", got)
	}
	rec = s.do(t, http.MethodGet, "/api/owners/erin/ledger", "", nil)
	if entries := decode[[]map[string]any](t, rec); len(entries) != 1 || entries[0]["reason"] != "Credit:Grant" {
		t.Fatalf("ledger = %v", entries)
	}
}

func TestJobsEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.grant(t, "frank", 20)
	for _, src := range []string{"uploads/frank/a.mp4", "uploads/frank/b.mp4"} {
		if rec := s.do(t, http.MethodPost, "/api/submit", `{"owner_id":"frank","source_descriptor":"`+src+`"}`, nil); rec.Code != http.StatusAccepted {
			t.Fatalf("submit code = %d", rec.Code)
		}
	}

	rec := s.do(t, http.MethodGet, "/api/jobs/stats", "", nil)
	stats := decode[jobStats](t, rec)
	if stats.Counts["queued"] != 2 || stats.Counts["completed"] != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.MaxAttempts != 3 {
		t.Fatalf("max_attempts = %d, want 3", stats.MaxAttempts)
	}

	rec = s.do(t, http.MethodGet, "/api/jobs?state=queued&limit=1", "", nil)
	jobs := decode[[]map[string]any](t, rec)
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	id, _ := jobs[0]["id"].(string)
	if rec := s.do(t, http.MethodGet, "/api/jobs/"+id, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("get job code = %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/jobs/"+id+"/ledger", "", nil)
	entries := decode[[]map[string]any](t, rec)
	if len(entries) != 1 || entries[0]["delta"] != float64(-10) {
		t.Fatalf("job ledger = %s", rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, "/api/jobs/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job code = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/jobs", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<table>") {
		t.Fatalf("jobs page = %d", rec.Code)
	}
}

func TestPages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/api/submit"`) {
		t.Fatalf("home = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "costs 10 credits") {
		t.Fatal("home page should show the admission cost")
	}

	rec = s.do(t, http.MethodGet, "/health", "", nil)
	health := decode[map[string]string](t, rec)
	if rec.Code != http.StatusOK || health["version"] != "test" || health["worker"] != "disabled" {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodGet, "/uploads/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing upload page = %d", rec.Code)
	}
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"OwnerID":          "owner_id",
		"SourceDescriptor": "source_descriptor",
		"Amount":           "amount",
		"HTTPStatus":       "http_status",
	}
	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthReportsWorkerState(t *testing.T) {
	s := newTestServer(t)
	d := s.deps
	d.Worker = worker.NewWorker(s.queue, 1, logger.Discard())
	e := NewRouter(d)

	state := func() string {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return decode[map[string]string](t, rec)["worker"]
	}

	if got := state(); got != "stopped" {
		t.Fatalf("before start = %q, want stopped", got)
	}
	d.Worker.Start(context.Background())
	if got := state(); got != "running" {
		d.Worker.Stop()
		t.Fatalf("after start = %q, want running", got)
	}
	d.Worker.Stop()
	if got := state(); got != "stopped" {
		t.Fatalf("after stop = %q, want stopped", got)
	}
}
