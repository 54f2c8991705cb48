// SPDX-License-Identifier: MIT

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/playbackd/internal/log"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusNotFound, "error/session_not_found", "Session not found", "SESSION_NOT_FOUND", "no such session", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	body := decode(t, rec)
	assert.Equal(t, "error/session_not_found", body["type"])
	assert.Equal(t, "Session not found", body["title"])
	assert.Equal(t, "SESSION_NOT_FOUND", body["code"])
	assert.Equal(t, "no such session", body["detail"])
	assert.Equal(t, "/api/v1/sessions/abc", body["instance"])
	assert.Equal(t, "req-1", body["requestId"])
	assert.EqualValues(t, http.StatusNotFound, body["status"])
}

func TestWrite_OmitsEmptyDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusUnauthorized, "error/unauthorized", "Authentication required", "UNAUTHORIZED", "", nil)

	body := decode(t, rec)
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}

func TestWrite_ExtrasLandAtTopLevel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusConflict, "error/command_rejected", "Rejected", "COMMAND_REJECTED", "", map[string]any{
		"sessionState": "ERRORED",
	})

	body := decode(t, rec)
	assert.Equal(t, "ERRORED", body["sessionState"])
}

func TestWrite_ProtectsReservedKeys(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusBadRequest, "error/invalid_input", "Invalid", "INVALID_INPUT", "", map[string]any{
		"status": 200,
		"code":   "SPOOFED",
	})

	body := decode(t, rec)
	assert.EqualValues(t, http.StatusBadRequest, body["status"])
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestWrite_RequestIDFallsBackToResponseHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderRequestID, "from-header")

	Write(rec, req, http.StatusInternalServerError, "error/internal", "Internal", "INTERNAL", "", nil)

	body := decode(t, rec)
	assert.Equal(t, "from-header", body["requestId"])
}
