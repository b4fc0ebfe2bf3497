package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"groupcast/internal/delivery"
	"groupcast/internal/jobstore"
	"groupcast/internal/scheduler"
	"groupcast/internal/session"
	"groupcast/pkg/logx"
)

type stubSession struct {
	state  session.State
	qr     string
	groups []session.Group

	mu    sync.Mutex
	sends int
}

func (s *stubSession) Start(ctx context.Context) error      { return nil }
func (s *stubSession) Stop(ctx context.Context) error       { return nil }
func (s *stubSession) State() session.State                 { return s.state }
func (s *stubSession) OnStateChange(fn func(session.State)) {}

func (s *stubSession) QR() (string, bool) {
	if s.state != session.StateAwaitingScan || s.qr == "" {
		return "", false
	}
	return s.qr, true
}

func (s *stubSession) ListGroups(ctx context.Context) ([]session.Group, error) {
	if s.state != session.StateReady {
		return nil, session.ErrNotReady
	}
	return s.groups, nil
}

func (s *stubSession) SendToChat(ctx context.Context, chatID string, p session.Payload) error {
	if s.state != session.StateReady {
		return session.ErrNotReady
	}
	s.mu.Lock()
	s.sends++
	s.mu.Unlock()
	return nil
}

type memStore struct {
	mu   sync.Mutex
	jobs []jobstore.Job
}

func (m *memStore) Close() error { return nil }

func (m *memStore) Load(ctx context.Context) []jobstore.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobstore.Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

func (m *memStore) AppendAll(ctx context.Context, jobs []jobstore.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, jobs...)
	return nil
}

func (m *memStore) RemoveByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.jobs[:0]
	for _, j := range m.jobs {
		if j.ID != id {
			out = append(out, j)
		}
	}
	m.jobs = out
	return nil
}

func newTestServer(t *testing.T, sess session.Session) (*Server, *memStore) {
	t.Helper()
	store := &memStore{}
	exec := delivery.New(delivery.Config{RatePerSec: 1000}, sess, logx.Nop())
	sched := scheduler.New(scheduler.Config{}, store, exec, logx.Nop())
	srv := New(Config{UploadDir: t.TempDir()}, sched, sess, logx.Nop())
	return srv, store
}

func readyStub() *stubSession {
	return &stubSession{
		state: session.StateReady,
		groups: []session.Group{
			{Name: "Team A", ID: "team-a@g.us"},
			{Name: "Team B", ID: "team-b@g.us"},
		},
	}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("bad JSON response %q: %v", rec.Body.String(), err)
	}
}

func TestQRNotReady(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSession{state: session.StateDisconnected})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != "QR not ready" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestQRDataURL(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSession{state: session.StateAwaitingScan, qr: "scan-me"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if !strings.HasPrefix(body["qr"], "data:image/png;base64,") {
		t.Fatalf("expected a PNG data URL, got %q", body["qr"])
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		sess    *stubSession
		ready   bool
		qrReady bool
	}{
		{"disconnected", &stubSession{state: session.StateDisconnected}, false, false},
		{"awaiting scan", &stubSession{state: session.StateAwaitingScan, qr: "x"}, false, true},
		{"ready", readyStub(), true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tc.sess)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var body map[string]bool
			decodeJSON(t, rec, &body)
			if body["ready"] != tc.ready || body["qrReady"] != tc.qrReady {
				t.Fatalf("got %+v, want ready=%v qrReady=%v", body, tc.ready, tc.qrReady)
			}
		})
	}
}

func TestGroupsEmptyWhenNotReady(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubSession{state: session.StateAwaitingScan, qr: "x"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/groups", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestGroupsListsWhenReady(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, readyStub())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/groups", nil))
	var body []groupItem
	decodeJSON(t, rec, &body)
	if len(body) != 2 || body[0].Name != "Team A" || body[1].ID != "team-b@g.us" {
		t.Fatalf("unexpected group list: %+v", body)
	}
}

func multipartBody(t *testing.T, fields map[string]string, imageName string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	if imageName != "" {
		fw, err := w.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func postSendMessage(t *testing.T, srv *Server, fields map[string]string, imageName string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, fields, imageName, image)
	req := httptest.NewRequest(http.MethodPost, "/send-message", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSendMessageRejectsBadGroupJSON(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, readyStub())

	rec := postSendMessage(t, srv, map[string]string{
		"groups":  "Team A", // not a JSON array
		"message": "hi",
	}, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != "Invalid group list" {
		t.Fatalf("unexpected error: %+v", body)
	}
}

func TestSendMessageRejectsEmptyGroups(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, readyStub())

	rec := postSendMessage(t, srv, map[string]string{
		"groups":  "[]",
		"message": "hi",
	}, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSendMessageImmediate(t *testing.T) {
	t.Parallel()
	sess := readyStub()
	srv, store := newTestServer(t, sess)

	rec := postSendMessage(t, srv, map[string]string{
		"groups":  `["Team A","Team B"]`,
		"message": "hello all",
	}, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body sendResponse
	decodeJSON(t, rec, &body)
	if body.Status != "sent immediately" {
		t.Fatalf("unexpected status %q", body.Status)
	}
	if len(body.Failed) != 0 {
		t.Fatalf("no failures expected, got %v", body.Failed)
	}
	if len(store.Load(context.Background())) != 0 {
		t.Fatal("immediate sends must not be persisted")
	}
	sess.mu.Lock()
	sends := sess.sends
	sess.mu.Unlock()
	if sends != 2 {
		t.Fatalf("expected 2 sends, got %d", sends)
	}
}

func TestSendMessageReportsFailedGroups(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, readyStub())

	rec := postSendMessage(t, srv, map[string]string{
		"groups":  `["Team A","Ghost Group"]`,
		"message": "hello",
	}, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body sendResponse
	decodeJSON(t, rec, &body)
	if len(body.Failed) != 1 || body.Failed[0] != "Ghost Group" {
		t.Fatalf("expected Ghost Group in failed list, got %v", body.Failed)
	}
}

func TestSendMessageScheduled(t *testing.T) {
	t.Parallel()
	srv, store := newTestServer(t, readyStub())

	rec := postSendMessage(t, srv, map[string]string{
		"groups":       `["Team A"]`,
		"message":      "future",
		"scheduleTime": "2100-01-01T00:00:00Z",
	}, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body sendResponse
	decodeJSON(t, rec, &body)
	if body.Status != "scheduled" {
		t.Fatalf("unexpected status %q", body.Status)
	}

	jobs := store.Load(context.Background())
	if len(jobs) != 1 || jobs[0].GroupName != "Team A" {
		t.Fatalf("expected one persisted job, got %+v", jobs)
	}

	// Snapshot exposed over /jobs shows the armed job.
	jr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(jr, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	var snap scheduler.Snapshot
	decodeJSON(t, jr, &snap)
	if len(snap.Pending) != 1 || !snap.Pending[0].Armed {
		t.Fatalf("expected one armed pending job, got %+v", snap)
	}
}

func TestSendMessageRejectedRequestRemovesUpload(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, readyStub())

	rec := postSendMessage(t, srv, map[string]string{
		"groups":  "[]",
		"message": "hi",
	}, "flyer.png", []byte("fake png bytes"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	entries, err := os.ReadDir(srv.cfg.UploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected request must not leave an upload behind, found %d files", len(entries))
	}
}

func TestSendMessageStoresUpload(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, readyStub())

	rec := postSendMessage(t, srv, map[string]string{
		"groups":  `["Team A"]`,
		"message": "with picture",
	}, "flyer.png", []byte("fake png bytes"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body sendResponse
	decodeJSON(t, rec, &body)
	if body.SavedImage == "" || !strings.HasSuffix(body.SavedImage, "-flyer.png") {
		t.Fatalf("unexpected savedImage %q", body.SavedImage)
	}
	saved := filepath.Join(srv.cfg.UploadDir, body.SavedImage)
	b, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("saved upload unreadable: %v", err)
	}
	if string(b) != "fake png bytes" {
		t.Fatalf("upload content mangled: %q", b)
	}
}
