// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ManuGH/playbackd/internal/api/problem"
	"github.com/ManuGH/playbackd/internal/log"
)

// writeJSON writes a JSON response with the given status code. If
// encoding fails the headers are already on the wire, so the error is
// only logged.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponent("api")
		logger.Error().
			Str("event", "api.encode_error").
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}

// APIError pairs a stable machine-readable code with a human-readable
// message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Canonical API errors.
var (
	ErrUnauthorized = &APIError{
		Code:    "UNAUTHORIZED",
		Message: "Authentication required",
	}
	ErrInvalidInput = &APIError{
		Code:    "INVALID_INPUT",
		Message: "Invalid input parameters",
	}
	ErrSessionNotFound = &APIError{
		Code:    "SESSION_NOT_FOUND",
		Message: "Session not found",
	}
	ErrSessionLimit = &APIError{
		Code:    "SESSION_LIMIT_REACHED",
		Message: "Maximum number of concurrent sessions reached",
	}
	ErrCommandRejected = &APIError{
		Code:    "COMMAND_REJECTED",
		Message: "Command not allowed in the current session state",
	}
	ErrInternalServer = &APIError{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "An internal error occurred",
	}
	ErrServiceUnavailable = &APIError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: "Service temporarily unavailable",
	}
)

// RespondError sends apiErr as an RFC 7807 problem response.
//
// Mapping:
//   - title: APIError.Message (human)
//   - code: APIError.Code (machine)
//   - type: "error/" + lowercase code
//   - detail: optional first element of details
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError, details ...any) {
	problemType := "error/" + strings.ToLower(apiErr.Code)

	detail := ""
	extra := map[string]any(nil)
	if len(details) > 0 {
		if s, ok := details[0].(string); ok {
			detail = s
		} else {
			extra = map[string]any{"details": details[0]}
		}
	}

	problem.Write(w, r, statusCode, problemType, apiErr.Message, apiErr.Code, detail, extra)
}
