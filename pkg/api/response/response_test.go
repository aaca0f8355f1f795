package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/fault"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestJSONNilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, ErrCodeBadRequest, "bad payload", "req-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeBadRequest, body.Error.Code)
	assert.Equal(t, "bad payload", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.RequestID)
}

func TestHTTPStatusFromError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromError(fault.BadInput("empty")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromError(fault.UnknownTool("nope")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromError(fault.BackendUnavailable("down")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromError(fault.Fatal("broken invariant")))
}

func TestHandleError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, fault.BadInput("message must not be empty"), "req-2")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeBadRequest, body.Error.Code)
	assert.Contains(t, body.Error.Message, "message must not be empty")
}
