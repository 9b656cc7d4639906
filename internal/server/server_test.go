package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/personafeed/config"
	"github.com/mohammad-safakhou/personafeed/internal/cache"
	"github.com/mohammad-safakhou/personafeed/internal/curation"
	"github.com/mohammad-safakhou/personafeed/tools/feeds/arxiv"
)

type stubPapers struct {
	entries []arxiv.Entry
}

func (s *stubPapers) Search(_ context.Context, _ string, n int) ([]arxiv.Entry, error) {
	if len(s.entries) > n {
		return s.entries[:n], nil
	}
	return s.entries, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Address = ":0"
	cfg.Search.MaxResults = 12
	cfg.Feeds.NewsWindow = 30 * 24 * time.Hour
	cfg.Feeds.GatherWindow = 7 * 24 * time.Hour
	cfg.Curation.CollaboratorTimeout = 2 * time.Second
	return cfg
}

func newTestServer(deps curation.Deps) http.Handler {
	return New(curation.NewOrchestrator(testConfig(), deps))
}

type sseFrame struct {
	event string
	data  []byte
}

func parseSSE(t *testing.T, body string) []sseFrame {
	t.Helper()
	var frames []sseFrame
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var f sseFrame
		for _, line := range strings.Split(chunk, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data = []byte(strings.TrimPrefix(line, "data: "))
			}
		}
		if f.event == "" || f.data == nil {
			t.Fatalf("malformed SSE frame: %q", chunk)
		}
		frames = append(frames, f)
	}
	return frames
}

func frameEvents(frames []sseFrame) string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.event
	}
	return strings.Join(names, ",")
}

func findFrame(frames []sseFrame, event string) (sseFrame, bool) {
	for _, f := range frames {
		if f.event == event {
			return f, true
		}
	}
	return sseFrame{}, false
}

func TestHealthz(t *testing.T) {
	h := newTestServer(curation.Deps{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCurateRequiresName(t *testing.T) {
	h := newTestServer(curation.Deps{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/curate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message, got %v", body)
	}
}

func TestCurateRejectsMalformedBody(t *testing.T) {
	h := newTestServer(curation.Deps{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/curate", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCurateDiscoveryStream(t *testing.T) {
	h := newTestServer(curation.Deps{Cache: cache.NewMemoryStore(15 * time.Minute)})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/curate", strings.NewReader(`{"name": "Ada Lovelace"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	frames := parseSSE(t, rec.Body.String())
	if got := frameEvents(frames); got != "stage,log,log,candidates,stage,complete" {
		t.Fatalf("unexpected frame sequence: %s", got)
	}

	candFrame, _ := findFrame(frames, "candidates")
	var ev curation.Event
	if err := json.Unmarshal(candFrame.data, &ev); err != nil {
		t.Fatalf("decode candidates event: %v", err)
	}
	var cp curation.CandidatesPayload
	if err := json.Unmarshal(ev.Payload, &cp); err != nil {
		t.Fatalf("decode candidates payload: %v", err)
	}
	if len(cp.Candidates) != 2 {
		t.Fatalf("expected 2 fallback candidates, got %d", len(cp.Candidates))
	}
	if cp.Meta.Mode != curation.DiscoveryModeFallback {
		t.Fatalf("no searcher wired, expected fallback mode: %+v", cp.Meta)
	}

	last := frames[len(frames)-1]
	if err := json.Unmarshal(last.data, &ev); err != nil {
		t.Fatalf("decode complete event: %v", err)
	}
	if !strings.Contains(ev.Message, "awaiting") {
		t.Fatalf("discovery stream should pause for confirmation, got %q", ev.Message)
	}
}

func TestCurateFullRunAndDeepen(t *testing.T) {
	deps := curation.Deps{
		Papers: &stubPapers{entries: []arxiv.Entry{
			{Title: "A study of feeds", URL: "https://arxiv.org/abs/2401.01234", Summary: "feeds everywhere", Published: time.Now()},
		}},
		Cache: cache.NewMemoryStore(15 * time.Minute),
	}
	h := newTestServer(deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/curate", strings.NewReader(`{"name": "Ada Lovelace", "candidateId": "cand-2"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	frames := parseSSE(t, rec.Body.String())
	if last := frames[len(frames)-1]; last.event != "complete" {
		t.Fatalf("stream should end complete, got %s", frameEvents(frames))
	}
	if _, ok := findFrame(frames, "candidate_pool"); !ok {
		t.Fatalf("candidate_pool frame missing: %s", frameEvents(frames))
	}

	feedFrame, ok := findFrame(frames, "feed")
	if !ok {
		t.Fatalf("feed frame missing: %s", frameEvents(frames))
	}
	var ev curation.Event
	if err := json.Unmarshal(feedFrame.data, &ev); err != nil {
		t.Fatalf("decode feed event: %v", err)
	}
	var payload curation.FeedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("decode feed payload: %v", err)
	}
	if len(payload.Items) == 0 {
		t.Fatalf("feed is empty")
	}

	itemID := payload.Items[0].Item.ID
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+itemID+"/deepen?name=Ada%20Lovelace", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("deepen status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var digest curation.DeepenDigest
	if err := json.Unmarshal(rec.Body.Bytes(), &digest); err != nil {
		t.Fatalf("decode digest: %v", err)
	}
	if digest.ItemID != itemID || digest.TLDR == "" || len(digest.NextActions) == 0 {
		t.Fatalf("digest malformed: %+v", digest)
	}
}

func TestCurateUnknownCandidateStreamsError(t *testing.T) {
	h := newTestServer(curation.Deps{Cache: cache.NewMemoryStore(15 * time.Minute)})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/curate", strings.NewReader(`{"name": "Ada Lovelace", "candidateId": "cand-99"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	// Headers are already out when resolution fails, so the failure rides
	// the stream as its terminal event.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	frames := parseSSE(t, rec.Body.String())
	last := frames[len(frames)-1]
	if last.event != "error" {
		t.Fatalf("stream should end with error frame, got %s", frameEvents(frames))
	}
	var ev curation.Event
	if err := json.Unmarshal(last.data, &ev); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if !strings.Contains(ev.Message, "cand-99") {
		t.Fatalf("error should name the candidate id, got %q", ev.Message)
	}
}

func TestDeepenUnknownItem(t *testing.T) {
	h := newTestServer(curation.Deps{Cache: cache.NewMemoryStore(15 * time.Minute)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/ghost/deepen?name=Ada", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message, got %v", body)
	}
}

func TestDeepenRequiresName(t *testing.T) {
	h := newTestServer(curation.Deps{Cache: cache.NewMemoryStore(15 * time.Minute)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/x/deepen", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
