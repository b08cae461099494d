package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"paperpal/internal/chunker"
	"paperpal/internal/domain"
	"paperpal/internal/embedding/hashing"
	"paperpal/internal/extract"
	"paperpal/internal/extract/pdftest"
	"paperpal/internal/service"
	"paperpal/internal/synth/extractive"
	"paperpal/internal/vectorstore/memory"
)

func init() { gin.SetMode(gin.TestMode) }

type brokenSynth struct{}

func (brokenSynth) Name() string { return "broken" }

func (brokenSynth) Answer(context.Context, []string, string) (string, error) {
	return "", errors.New("model overloaded")
}

func newTestServer(t *testing.T, synth domain.Synthesizer) *Server {
	t.Helper()
	ch, err := chunker.New(200, 20)
	if err != nil {
		t.Fatal(err)
	}
	if synth == nil {
		synth = extractive.New(1)
	}
	ctrl, err := service.New(context.Background(), service.Deps{
		Extractor:   extract.New(nil),
		Chunker:     ch,
		Embedder:    hashing.NewEmbedder(0),
		Store:       memory.NewStorage(),
		Synthesizer: synth,
	}, service.Options{})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	return New(ctrl, Config{}, nil)
}

func uploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func askRequest(question string) *http.Request {
	body, _ := json.Marshal(map[string]string{"question": question})
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return data
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decode(t, w)["status"] != "healthy" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestIngestThenQuery(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, uploadRequest(t, map[string][]byte{"sky.pdf": pdftest.Build("The sky is blue.")}))
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decode(t, w)
	if data["level"] != "success" || data["documents"].(float64) != 1 {
		t.Fatalf("unexpected ingest body %v", data)
	}

	w = serve(s, askRequest("What color is the sky?"))
	if w.Code != http.StatusOK {
		t.Fatalf("query: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = decode(t, w)
	if !strings.Contains(data["answer"].(string), "blue") {
		t.Fatalf("unexpected answer %v", data)
	}
	if ps := data["passages"].([]any); len(ps) != 1 {
		t.Fatalf("expected one passage, got %v", ps)
	}

	w = serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	data = decode(t, w)
	if data["state"] != "ready" || data["records"].(float64) != 1 {
		t.Fatalf("unexpected status %v", data)
	}
}

func TestQueryBeforeIngestIsWarning(t *testing.T) {
	s := newTestServer(t, nil)
	w := serve(s, askRequest("anything?"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := decode(t, w)
	if data["level"] != "warning" || data["message"] != service.MsgNoIndex {
		t.Fatalf("unexpected body %v", data)
	}
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	if w := serve(s, req); w.Code != http.StatusBadRequest || decode(t, w)["error_code"] != "invalid_request" {
		t.Fatalf("malformed json: got %d %s", w.Code, w.Body.String())
	}

	if w := serve(s, uploadRequest(t, nil)); w.Code != http.StatusBadRequest || decode(t, w)["error_code"] != "no_file" {
		t.Fatalf("empty upload: got %d %s", w.Code, w.Body.String())
	}
}

func TestCollaboratorFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, brokenSynth{})
	serve(s, uploadRequest(t, map[string][]byte{"notes.txt": []byte("Cats purr when content.")}))

	w := serve(s, askRequest("Why do cats purr?"))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	data := decode(t, w)
	if data["error_code"] != "synthesizer_unavailable" || !strings.Contains(data["details"].(string), "overloaded") {
		t.Fatalf("unexpected error body %v", data)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://frontend.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := serve(s, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
