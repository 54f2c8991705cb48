// SPDX-License-Identifier: MIT

// Package problem writes RFC 7807 problem+json error responses.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/playbackd/internal/log"
)

// Canonical correlation names. These must stay in lockstep with the
// middleware that stamps the header.
const (
	HeaderRequestID  = "X-Request-ID"
	JSONKeyRequestID = "requestId"
)

// Write writes an RFC 7807 problem details response.
//
// Semantics:
//   - type: canonical machine identifier (e.g. "error/session_not_found")
//   - title: human-readable short label (e.g. "Session not found")
//   - code: stable machine-readable short code (e.g. "SESSION_NOT_FOUND")
//   - detail: human-readable explanation of this specific failure
//
// Extras land at the top level; reserved RFC 7807 keys are protected.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	logger := log.WithComponent("api")

	instance := ""
	if r != nil {
		instance = r.URL.EscapedPath()
	}

	// Request id truth order: context first, then whatever the
	// middleware already stamped on the response header.
	reqID := ""
	if r != nil {
		reqID = log.RequestIDFromContext(r.Context())
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := map[string]any{
		"type":           problemType,
		"title":          title,
		"status":         status,
		"code":           code,
		JSONKeyRequestID: reqID,
	}
	if detail != "" {
		res["detail"] = detail
	}
	if instance != "" {
		res["instance"] = instance
	}

	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code", JSONKeyRequestID:
			logger.Warn().
				Str("event", "problem.reserved_key").
				Str("key", k).
				Str("problem_type", problemType).
				Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	if reqID != "" {
		w.Header().Set(HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger.Error().
			Str("event", "problem.encode_error").
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}
