package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/lookback/internal/memoryservice"
	"github.com/starford/lookback/internal/testutil"
)

// testEnv sets up a service over the sample archive and a router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*memoryservice.Service, http.Handler) {
	t.Helper()
	svc := memoryservice.New(testutil.TestStore(t), nil, nil)
	if _, err := svc.IngestFolder(context.Background(), testutil.TestArchive(t, nil)); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	return svc, NewRouter(svc, authToken != "", authToken, nil)
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
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestListMemories(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/memories", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[MemoryListResponse](t, w)
	if resp.Total != 4 || len(resp.Memories) != 4 {
		t.Fatalf("total = %d, len = %d", resp.Total, len(resp.Memories))
	}
	first := resp.Memories[0]
	if first.Filename != "a.json" || !first.Displayable || first.Kind != "image" {
		t.Errorf("first = %+v", first)
	}
	if first.Place != "40.71°N, 74.01°W" {
		t.Errorf("place = %q", first.Place)
	}
	if first.MediaURL != "/api/memories/a.json/media" {
		t.Errorf("media url = %q", first.MediaURL)
	}
	last := resp.Memories[3]
	if last.Filename != "d.json" || last.HasMedia || last.TimeAgo != "Unknown date" || last.Place != "Unknown location" {
		t.Errorf("last = %+v", last)
	}
}

func TestListMemories_Limit(t *testing.T) {
	_, router := testEnv(t, "")
	resp := decode[MemoryListResponse](t, do(t, router, http.MethodGet, "/memories?limit=2", nil))
	if len(resp.Memories) != 2 || resp.Total != 4 {
		t.Errorf("len = %d total = %d", len(resp.Memories), resp.Total)
	}
}

func TestGetMemory(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/memories/b.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if m := decode[MemoryDTO](t, w); m.MediaType != "Video" || m.MIME != "video/mp4" {
		t.Errorf("memory = %+v", m)
	}
	if w := do(t, router, http.MethodGet, "/memories/zzz.json", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestMedia(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/memories/a.json/media", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "\xff\xd8\xff") {
		t.Error("unexpected body")
	}
	if w := do(t, router, http.MethodGet, "/memories/d.json/media", nil); w.Code != http.StatusNotFound {
		t.Errorf("no media = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/memories/a.json/media?overlay=1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad overlay = %d, want 400", w.Code)
	}
}

func TestFlashbacks(t *testing.T) {
	_, router := testEnv(t, "")
	resp := decode[MemoryListResponse](t, do(t, router, http.MethodGet, "/flashbacks", nil))
	if len(resp.Memories) != 4 {
		t.Fatalf("len = %d, want 4", len(resp.Memories))
	}
	seen := map[string]bool{}
	for _, m := range resp.Memories {
		if seen[m.Filename] {
			t.Errorf("duplicate %s", m.Filename)
		}
		seen[m.Filename] = true
	}
}

func TestTimeGroups(t *testing.T) {
	_, router := testEnv(t, "")
	resp := decode[struct {
		Years []YearGroupDTO `json:"years"`
	}](t, do(t, router, http.MethodGet, "/groups/time", nil))
	if len(resp.Years) != 3 {
		t.Fatalf("years = %d, want 3", len(resp.Years))
	}
	y := resp.Years[0]
	if y.Year != 2024 || len(y.Months) != 1 || y.Months[0].Label != "March" || y.Months[0].Count != 2 {
		t.Errorf("2024 = %+v", y)
	}
	if y.Months[0].View != "year:2024:03" {
		t.Errorf("view = %q", y.Months[0].View)
	}
	if u := resp.Years[2]; u.Known || u.Months[0].View != "year:unknown" {
		t.Errorf("unknown = %+v", u)
	}
}

func TestPlaceGroups(t *testing.T) {
	_, router := testEnv(t, "")
	resp := decode[struct {
		Places []PlaceGroupDTO `json:"places"`
	}](t, do(t, router, http.MethodGet, "/groups/places", nil))
	if len(resp.Places) != 3 {
		t.Fatalf("places = %d, want 3", len(resp.Places))
	}
	if p := resp.Places[0]; p.Count != 2 || p.Key != "40.71,-74.01" || p.View != "place:40.71,-74.01" {
		t.Errorf("first = %+v", p)
	}
}

func TestCursorFlow(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/cursor/next", nil); w.Code != http.StatusConflict {
		t.Errorf("next on closed = %d, want 409", w.Code)
	}

	w := do(t, router, http.MethodPost, "/cursor", CursorRequest{View: "feed", Index: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("open = %d %s", w.Code, w.Body.String())
	}
	c := decode[CursorDTO](t, w)
	if !c.Open || c.Index != 2 || !c.HasNext || !c.HasPrevious || c.Memory.Filename != "c.json" {
		t.Errorf("opened = %+v", c)
	}

	do(t, router, http.MethodPost, "/cursor/next", nil)
	c = decode[CursorDTO](t, do(t, router, http.MethodPost, "/cursor/next", nil))
	if c.Index != 3 || c.HasNext {
		t.Errorf("after next = %+v", c)
	}

	c = decode[CursorDTO](t, do(t, router, http.MethodPost, "/cursor/previous", nil))
	if c.Index != 2 {
		t.Errorf("after previous = %+v", c)
	}

	if w := do(t, router, http.MethodDelete, "/cursor", nil); w.Code != http.StatusNoContent {
		t.Errorf("close = %d", w.Code)
	}
	if c := decode[CursorDTO](t, do(t, router, http.MethodGet, "/cursor", nil)); c.Open {
		t.Error("cursor still open")
	}
}

func TestCursor_Errors(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/cursor", CursorRequest{View: "timeline"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid view = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/cursor", CursorRequest{View: "feed", Filename: "zzz.json"}); w.Code != http.StatusNotFound {
		t.Errorf("missing memory = %d, want 404", w.Code)
	}
}

func TestIngest(t *testing.T) {
	_, router := testEnv(t, "")
	dir := testutil.TestArchive(t, map[string]string{"only.json": `{"Date": "2020-01-01 00:00:00 UTC"}`})

	w := do(t, router, http.MethodPost, "/ingest", IngestRequest{Path: dir})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest = %d %s", w.Code, w.Body.String())
	}
	res := decode[memoryservice.IngestResult](t, w)
	if res.Count != 1 || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}
	if resp := decode[MemoryListResponse](t, do(t, router, http.MethodGet, "/memories", nil)); resp.Total != 1 {
		t.Errorf("total = %d", resp.Total)
	}
}

func TestIngest_BadRequests(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/ingest", IngestRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty path = %d, want 400", w.Code)
	}
	missing := filepath.Join(t.TempDir(), "gone")
	if w := do(t, router, http.MethodPost, "/ingest", IngestRequest{Path: missing}); w.Code != http.StatusNotFound {
		t.Errorf("missing folder = %d, want 404", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/ingest", map[string]string{"folder": "/tmp"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}
}

func TestSaveClearRestore(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/save", nil); w.Code != http.StatusOK {
		t.Fatalf("save = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/memories", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", w.Code)
	}
	if resp := decode[MemoryListResponse](t, do(t, router, http.MethodGet, "/memories", nil)); resp.Total != 0 {
		t.Errorf("total after clear = %d", resp.Total)
	}
	// Clear also removes the saved copy.
	if w := do(t, router, http.MethodPost, "/restore", nil); w.Code != http.StatusNotFound {
		t.Errorf("restore after clear = %d, want 404", w.Code)
	}
}

func TestRestore(t *testing.T) {
	svc, router := testEnv(t, "")
	if _, err := svc.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	w := do(t, router, http.MethodPost, "/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore = %d", w.Code)
	}
	if got := decode[map[string]int](t, w); got["loaded"] != 4 {
		t.Errorf("loaded = %d", got["loaded"])
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/memories", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/memories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/memories", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/memories?access_token=secret123", nil)
	if w.Code != http.StatusOK {
		t.Errorf("query token GET = %d, want 200", w.Code)
	}

	// Mutations must use the header.
	w = do(t, router, http.MethodPost, "/save?access_token=secret123", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token POST = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/memories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	// The SSE handler blocks, so cancel the context after a short time.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
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
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	svc := memoryservice.New(testutil.TestStore(t), nil, nil)

	// Minimal SSE handler stub: writes headers and blocks until context done.
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
