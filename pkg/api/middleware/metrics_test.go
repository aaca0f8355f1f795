package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method, path, status string
}

type fakeRecorder struct {
	requests []recordedRequest
	active   int
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, path, status})
}

func (f *fakeRecorder) IncActiveConnections() { f.active++ }
func (f *fakeRecorder) DecActiveConnections() { f.active-- }

func TestMetricsRecordsRequest(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := Metrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, recordedRequest{"POST", "/api/chat", "201"}, recorder.requests[0])
	assert.Zero(t, recorder.active, "active connections balance out")
}

func TestMetricsSkipsMetricsEndpoint(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := Metrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Empty(t, recorder.requests)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"/api/chat", "/api/chat"},
		{"/api/items/42", "/api/items/:id"},
		{"/api/items/550e8400-e29b-41d4-a716-446655440000", "/api/items/:id"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, normalizePath(tt.in), tt.in)
	}
}
