package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workx/internal/domain"
	"workx/internal/logging"
)

type fakeService struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	listing  map[string]any
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "")
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /api/audio/devices", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "")
		writeJSON(w, http.StatusOK, map[string]any{
			"devices": []map[string]string{{"id": "{0.0.0.00000000}.{abc}", "name": "Speakers"}},
		})
	})
	mux.HandleFunc("POST /api/recordings/fixed", func(w http.ResponseWriter, r *http.Request) {
		var body recordingRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.record(r, body.DeviceID)
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /api/recordings/continuous", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "")
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a recording is already running"})
	})
	mux.HandleFunc("DELETE /api/recordings/continuous", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/transcripts", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "")
		s.mu.Lock()
		listing := s.listing
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, listing)
	})
	mux.HandleFunc("GET /api/transcripts/content", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, r.URL.Query().Get("path"))
		if r.URL.Query().Get("path") == "missing.txt" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"content": "hello world"})
	})
	return mux
}

func (s *fakeService) record(r *http.Request, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.bodies = append(s.bodies, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, service *fakeService) *Client {
	t.Helper()
	server := httptest.NewServer(service.handler())
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, RequestTimeout: time.Second}, logging.Discard())
	require.NoError(t, err)
	return client
}

func TestClientCommands(t *testing.T) {
	t.Parallel()

	service := &fakeService{}
	client := newTestClient(t, service)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	devices, err := client.ListAudioDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.AudioDevice{{ID: "{0.0.0.00000000}.{abc}", Name: "Speakers"}}, devices)

	require.NoError(t, client.StartFixedRecording(ctx, "mic-1"))
	require.NoError(t, client.StopContinuousRecording(ctx))

	err = client.StartContinuousRecording(ctx, "mic-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "a recording is already running", apiErr.Message)

	service.mu.Lock()
	defer service.mu.Unlock()
	assert.Contains(t, service.requests, "POST /api/recordings/fixed")
	assert.Contains(t, service.bodies, "mic-1")
}

func TestClientListTranscriptShapes(t *testing.T) {
	t.Parallel()

	service := &fakeService{listing: map[string]any{
		"source": []string{"a_EN.txt"},
		"target": []string{"a.txt"},
	}}
	client := newTestClient(t, service)

	listing, err := client.ListTranscriptFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TranscriptListing{Source: []string{"a_EN.txt"}, Target: []string{"a.txt"}}, listing)

	service.mu.Lock()
	service.listing = map[string]any{"files": []string{"x.txt", "y.txt"}}
	service.mu.Unlock()

	listing, err = client.ListTranscriptFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt", "y.txt"}, listing.Source)
	assert.Empty(t, listing.Target)
}

func TestClientReadTranscript(t *testing.T) {
	t.Parallel()

	service := &fakeService{}
	client := newTestClient(t, service)

	text, err := client.ReadTranscriptFile(context.Background(), `C:\t\record 1.txt`)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	service.mu.Lock()
	assert.Equal(t, `C:\t\record 1.txt`, service.bodies[len(service.bodies)-1])
	service.mu.Unlock()

	_, err = client.ReadTranscriptFile(context.Background(), "missing.txt")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not found", apiErr.Message)
}

func TestResolveBaseURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	portFile := filepath.Join(dir, "server-port.json")
	require.NoError(t, os.WriteFile(portFile, []byte(`{"port": 5123}`), 0o600))
	badFile := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badFile, []byte(`{"port": 0}`), 0o600))

	got, err := ResolveBaseURL("http://localhost:9000/", portFile)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", got)

	got, err = ResolveBaseURL("", portFile)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5123", got)

	got, err = ResolveBaseURL("", filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, got)

	_, err = ResolveBaseURL("", badFile)
	require.Error(t, err)
}

func TestNewRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "not a url"}, logging.Discard())
	require.Error(t, err)
}
