package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
	"github.com/audiolibrelab/wavrec/internal/config"
	"github.com/audiolibrelab/wavrec/internal/service"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	cfg.Output.ScratchDirectory = t.TempDir()
	cfg.Audio.Backend = "tone"
	cfg.Audio.SampleRate = 8000
	cfg.Audio.Channels = 1
	cfg.Audio.ChunkFrames = 160

	svc := service.NewWithBackend(cfg, "", func(bc audio.BackendConfig) (audio.Backend, error) {
		return audio.NewToneBackend(bc), nil
	})
	return New(svc, cfg.Server.Port), cfg
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_RecordCycle(t *testing.T) {
	srv, cfg := newTestServer(t)
	h := srv.Handler()

	resp := postForm(h, "/record/start", url.Values{"name": {"remote"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("Start returned %d: %s", resp.Code, resp.Body.String())
	}

	var status StatusResponse
	resp = get(h, "/status")
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.Status != string(service.StatusRecording) {
		t.Errorf("Expected RECORDING, got %s", status.Status)
	}

	if resp := postForm(h, "/record/start", url.Values{"name": {"again"}}); resp.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a second start, got %d", resp.Code)
	}

	time.Sleep(50 * time.Millisecond)
	resp = postForm(h, "/record/stop", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Stop returned %d: %s", resp.Code, resp.Body.String())
	}

	if _, err := os.Stat(filepath.Join(cfg.Output.Directory, "remote.wav")); err != nil {
		t.Fatalf("Expected recording file: %v", err)
	}

	var files FilesResponse
	resp = get(h, "/api/files")
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		t.Fatalf("Failed to decode files: %v", err)
	}
	if files.TotalCount != 1 || files.Files[0].Name != "remote.wav" {
		t.Fatalf("Unexpected files response: %+v", files)
	}

	resp = get(h, files.Files[0].StreamURL)
	if resp.Code != http.StatusOK {
		t.Fatalf("Stream returned %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Unexpected content type %q", ct)
	}
	if !strings.HasPrefix(resp.Body.String(), "RIFF") {
		t.Error("Streamed body is not a RIFF file")
	}

	resp = get(h, files.Files[0].DownloadURL)
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}
}

func TestServer_StopWithoutRecording(t *testing.T) {
	srv, _ := newTestServer(t)
	if resp := postForm(srv.Handler(), "/record/stop", nil); resp.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	if resp := get(srv.Handler(), "/record/start"); resp.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.Code)
	}
}

func TestServer_FileValidation(t *testing.T) {
	srv, cfg := newTestServer(t)
	h := srv.Handler()

	if err := os.WriteFile(filepath.Join(cfg.Output.Directory, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := map[string]int{
		"/api/files/stream/":            http.StatusBadRequest,
		"/api/files/stream/..%5Cx.wav":  http.StatusBadRequest,
		"/api/files/stream/notes.txt":   http.StatusForbidden,
		"/api/files/download/none.wav":  http.StatusNotFound,
		"/api/files/stream/missing.wav": http.StatusNotFound,
	}
	for path, want := range tests {
		if resp := get(h, path); resp.Code != want {
			t.Errorf("GET %s: expected %d, got %d", path, want, resp.Code)
		}
	}
}

func TestServer_Sources(t *testing.T) {
	srv, _ := newTestServer(t)

	var sources SourcesResponse
	resp := get(srv.Handler(), "/sources")
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		t.Fatalf("Failed to decode sources: %v", err)
	}
	if sources.Backend != "tone" || len(sources.Sources) != 1 {
		t.Errorf("Unexpected sources response: %+v", sources)
	}
}

func TestServer_SelectProfileRequiresName(t *testing.T) {
	srv, _ := newTestServer(t)
	if resp := postForm(srv.Handler(), "/config/select", url.Values{}); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.Code)
	}
}

func TestServer_Index(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	if resp := get(h, "/"); resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "/record/start") {
		t.Errorf("Unexpected index response: %d", resp.Code)
	}
	if resp := get(h, "/nope"); resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.Code)
	}
}
