package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/export"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/testutil"
)

// testEnv builds a manager over in-memory storage and a router around it.
// A non-empty authToken turns on token mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Manager, http.Handler) {
	t.Helper()
	svc, _ := testutil.TestManager(t)
	router := NewRouter(svc, authToken != "", authToken, nil)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"title": "Hello", "content": "# Hello\nWorld"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag on create")
	}
	created := decode[models.Note](t, w)

	w = do(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[models.Note](t, w)
	if got.Title != "Hello" || got.Content != "# Hello\nWorld" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateEmptyBody(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Note](t, w)
	if n.Title != "" || n.Content != "" || n.IsPinned {
		t.Errorf("expected empty note, got %+v", n)
	}
	if len(svc.Notes()) != 1 {
		t.Errorf("notes = %d, want 1", len(svc.Notes()))
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()

	w := do(t, router, http.MethodGet, "/notes/"+n.ID, nil)
	etag := w.Header().Get("ETag")

	// Update with correct ETag.
	body, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/"+n.ID, bytes.NewReader(body))
	req.Header.Set("If-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale ETag → 409.
	req = httptest.NewRequest(http.MethodPut, "/notes/"+n.ID, bytes.NewReader(body))
	req.Header.Set("If-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update status = %d, want 409", w.Code)
	}

	got, _ := svc.Get(n.ID)
	if got.Content != "v2" {
		t.Errorf("content = %q, want v2", got.Content)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()

	w := do(t, router, http.MethodPut, "/notes/"+n.ID, map[string]any{"title": "Renamed", "isPinned": true})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	got, _ := svc.Get(n.ID)
	if got.Title != "Renamed" || !got.IsPinned {
		t.Errorf("got %+v", got)
	}
}

func TestUpdateEmptyBody(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()

	w := do(t, router, http.MethodPut, "/notes/"+n.ID, map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/notes/missing", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()

	w := do(t, router, http.MethodDelete, "/notes/"+n.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, ok := svc.Get(n.ID); ok {
		t.Error("note still present after delete")
	}

	w = do(t, router, http.MethodDelete, "/notes/"+n.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	svc, router := testEnv(t, "")
	for _, title := range []string{"Groceries", "Meeting notes", "Garden plan"} {
		n := svc.AddNote()
		n.Title = title
		svc.UpdateNote(n)
	}

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decode[NoteListResponse](t, w)
	if resp.Total != 3 || len(resp.Notes) != 3 {
		t.Errorf("total = %d, notes = %d, want 3", resp.Total, len(resp.Notes))
	}
	// Newest first.
	if resp.Notes[0].Title != "Garden plan" {
		t.Errorf("first = %q, want Garden plan", resp.Notes[0].Title)
	}

	w = do(t, router, http.MethodGet, "/notes?q=Meeting", nil)
	resp = decode[NoteListResponse](t, w)
	if resp.Total != 1 || resp.Notes[0].Title != "Meeting notes" {
		t.Errorf("filtered = %+v", resp)
	}
}

func TestTogglePin(t *testing.T) {
	svc, router := testEnv(t, "")
	first := svc.AddNote()
	svc.AddNote()

	w := do(t, router, http.MethodPost, "/notes/"+first.ID+"/pin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pin status = %d", w.Code)
	}
	if n := decode[models.Note](t, w); !n.IsPinned {
		t.Error("expected pinned")
	}
	if svc.Notes()[0].ID != first.ID {
		t.Error("pinned note should lead the collection")
	}

	w = do(t, router, http.MethodPost, "/notes/missing/pin", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFindEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()
	n.Content = "Cat cat CAT"
	svc.UpdateNote(n)

	w := do(t, router, http.MethodGet, "/notes/"+n.ID+"/find?q=cat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("find status = %d", w.Code)
	}
	resp := decode[FindResponse](t, w)
	want := []models.Span{{Start: 0, End: 3}, {Start: 4, End: 7}, {Start: 8, End: 11}}
	if resp.Count != 3 || len(resp.Matches) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	for i, s := range want {
		if resp.Matches[i] != s {
			t.Errorf("match[%d] = %+v, want %+v", i, resp.Matches[i], s)
		}
	}

	// Empty query yields an empty list, not an error.
	w = do(t, router, http.MethodGet, "/notes/"+n.ID+"/find", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("empty find status = %d", w.Code)
	}
	if resp := decode[FindResponse](t, w); resp.Count != 0 {
		t.Errorf("empty query count = %d", resp.Count)
	}
}

func TestReplaceEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()
	n.Content = "aaa"
	svc.UpdateNote(n)

	w := do(t, router, http.MethodPost, "/notes/"+n.ID+"/replace", ReplaceRequest{Query: "a", Replacement: "b"})
	if w.Code != http.StatusOK {
		t.Fatalf("replace next status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ReplaceResponse](t, w)
	if resp.Note.Content != "baa" || resp.Replaced != 1 {
		t.Errorf("replace next = %+v", resp)
	}

	w = do(t, router, http.MethodPost, "/notes/"+n.ID+"/replace", ReplaceRequest{Query: "A", Replacement: "b", All: true})
	resp = decode[ReplaceResponse](t, w)
	if resp.Note.Content != "bbb" || resp.Replaced != 2 {
		t.Errorf("replace all = %+v", resp)
	}

	got, _ := svc.Get(n.ID)
	if got.Content != "bbb" {
		t.Errorf("persisted content = %q", got.Content)
	}
}

func TestReplaceEmptyQuery(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()

	w := do(t, router, http.MethodPost, "/notes/"+n.ID+"/replace", ReplaceRequest{Replacement: "x", All: true})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHighlightEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()
	n.Content = "# Title"
	svc.UpdateNote(n)

	w := do(t, router, http.MethodGet, "/notes/"+n.ID+"/highlight", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("highlight status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"heading"`) {
		t.Errorf("missing heading run in %s", w.Body.String())
	}
}

func TestRenderHTMLEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()
	n.Content = "**bold**"
	svc.UpdateNote(n)

	w := do(t, router, http.MethodGet, "/notes/"+n.ID+"/html", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("html status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<strong>bold</strong>") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestExportNoteEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.AddNote()
	n.Title = "Trip/Plan"
	n.Content = "pack bags"
	svc.UpdateNote(n)

	w := do(t, router, http.MethodGet, "/notes/"+n.ID+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if w.Body.String() != "pack bags" {
		t.Errorf("body = %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "TripPlan_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestExportAllEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	for range 2 {
		n := svc.AddNote()
		n.Title = "Same"
		svc.UpdateNote(n)
	}

	w := do(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["Same.md"] || !names["Same_2.md"] {
		t.Errorf("archive entries = %v", names)
	}
}

func TestExportEndpoints_LeaveNothingBehind(t *testing.T) {
	root := t.TempDir()
	svc, _ := testutil.TestManager(t, noteservice.WithExporter(export.New(root, testutil.Logger())))
	router := NewRouter(svc, false, "", nil)
	n := svc.CreateNote("Keep", "body")

	for _, target := range []string{"/export", "/notes/" + n.ID + "/export", "/export"} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", target, w.Code)
		}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("export root still holds %q", e.Name())
	}
}

func TestUpdate_ConcurrentIfMatchOnlyOneWins(t *testing.T) {
	svc, router := testEnv(t, "")
	n := svc.CreateNote("Draft", "v1")
	etag := `"` + checksum.Note(n) + `"`

	const writers = 8
	codes := make(chan int, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(map[string]string{"content": "writer " + strconv.Itoa(i)})
			req := httptest.NewRequest(http.MethodPut, "/notes/"+n.ID, bytes.NewReader(b))
			req.Header.Set("If-Match", etag)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	ok, conflicts := 0, 0
	for c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", c)
		}
	}
	if ok != 1 || conflicts != writers-1 {
		t.Errorf("ok = %d, conflicts = %d; want 1 and %d", ok, conflicts, writers-1)
	}
}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")

	w := uploadFile(t, router, "Shopping List.md", []byte("- eggs"))
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Note](t, w)
	if n.Title != "Shopping List" || n.Content != "- eggs" || n.IsPinned {
		t.Errorf("imported = %+v", n)
	}
	if svc.Notes()[0].ID != n.ID {
		t.Error("imported note should be first")
	}
}

func TestImportEndpoint_NotText(t *testing.T) {
	_, router := testEnv(t, "")

	w := uploadFile(t, router, "blob.md", []byte{0xff, 0xfe, 0x00, 0x81})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestImportEndpoint_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestStatusAndOnboarding(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.AddNote()

	w := do(t, router, http.MethodGet, "/status", nil)
	st := decode[StatusResponse](t, w)
	if st.Notes != 1 || st.OnboardingCompleted || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}

	w = do(t, router, http.MethodPut, "/onboarding", OnboardingRequest{Completed: true})
	if w.Code != http.StatusNoContent {
		t.Fatalf("onboarding status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/status", nil)
	if st := decode[StatusResponse](t, w); !st.OnboardingCompleted {
		t.Error("onboarding flag not persisted")
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	svc, _ := testutil.TestManager(t)

	// Writes headers and blocks until the request context is done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
