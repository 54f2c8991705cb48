// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/playbackd/internal/log"
	"github.com/ManuGH/playbackd/internal/playback"
	"github.com/ManuGH/playbackd/internal/playback/store"
	"github.com/ManuGH/playbackd/internal/telemetry"
)

// maxBodyBytes bounds command payloads; nothing on this API is large.
const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// isSafeSessionID bounds ids before they reach logs or the journal.
func isSafeSessionID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "sessionID")
	if !isSafeSessionID(id) {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, "invalid session id")
		return "", false
	}
	return id, true
}

// liveSession resolves a session id to its live controller, writing the
// 404 problem when the session does not exist anymore.
func (s *Server) liveSession(w http.ResponseWriter, r *http.Request) (*playback.Controller, bool) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return nil, false
	}
	ctrl, ok := s.manager.Get(id)
	if !ok {
		RespondError(w, r, http.StatusNotFound, ErrSessionNotFound)
		return nil, false
	}
	return ctrl, true
}

// respondDecision maps a controller decision to 202 with the fresh
// snapshot, or a 409 problem carrying the rejection reason.
func respondDecision(w http.ResponseWriter, r *http.Request, ctrl *playback.Controller, d playback.Decision) {
	if !d.Allowed {
		RespondError(w, r, http.StatusConflict, ErrCommandRejected, d.Reason)
		return
	}
	writeJSON(w, http.StatusAccepted, ctrl.Snapshot())
}

type openSessionRequest struct {
	ManifestURL      string `json:"manifest_url"`
	Autoplay         bool   `json:"autoplay"`
	Muted            bool   `json:"muted"`
	PreferredVariant *int   `json:"preferred_variant"`
}

// handleOpenSession creates a session and runs its open sequence. The
// session is created even when probing fails: the snapshot then shows
// ERRORED with the failure attached, and the client may retry or delete.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, err.Error())
		return
	}
	if req.ManifestURL == "" {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, "manifest_url is required")
		return
	}

	ctrl, _, err := s.manager.Open(r.Context(), req.ManifestURL, playback.OpenOptions{
		Autoplay:         req.Autoplay,
		Muted:            req.Muted,
		PreferredVariant: req.PreferredVariant,
	})
	switch {
	case errors.Is(err, playback.ErrSessionLimit):
		RespondError(w, r, http.StatusServiceUnavailable, ErrSessionLimit)
		return
	case errors.Is(err, playback.ErrManagerClosed):
		RespondError(w, r, http.StatusServiceUnavailable, ErrServiceUnavailable, "daemon is shutting down")
		return
	case err != nil:
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer, err.Error())
		return
	}

	snap := ctrl.Snapshot()
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "session.opened").
		Str("session_id", snap.SessionID).
		Str("state", string(snap.State)).
		Msg("session opened")

	writeJSON(w, http.StatusCreated, snap)
}

// handleListSessions lists live sessions. With ?include=closed the
// response also carries journaled sessions that have already ended.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	live := s.manager.List()

	response := map[string]any{
		"sessions": live,
		"count":    len(live),
	}

	if r.URL.Query().Get("include") == "closed" {
		journal := s.manager.Journal()
		if journal == nil {
			RespondError(w, r, http.StatusServiceUnavailable, ErrServiceUnavailable, "session journal not configured")
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 1000 {
				RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, "limit must be between 1 and 1000")
				return
			}
			limit = n
		}

		closed, err := journal.ListSessions(r.Context(), store.Filter{
			States: []string{string(playback.StateClosed)},
			Limit:  limit,
		})
		if err != nil {
			RespondError(w, r, http.StatusInternalServerError, ErrInternalServer, err.Error())
			return
		}
		response["closed"] = closed
		response["count"] = len(live) + len(closed)
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetSession returns the live snapshot, falling back to the
// journal so recently closed sessions stay inspectable.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if ctrl, ok := s.manager.Get(id); ok {
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
		return
	}

	if journal := s.manager.Journal(); journal != nil {
		rec, err := journal.GetSession(r.Context(), id)
		if err != nil {
			RespondError(w, r, http.StatusInternalServerError, ErrInternalServer, err.Error())
			return
		}
		if rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	RespondError(w, r, http.StatusNotFound, ErrSessionNotFound)
}

// handleCloseSession tears a session down. Deleting an already-closed
// session succeeds so clients can retry without special-casing.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	err := s.manager.CloseSession(r.Context(), id)
	switch {
	case errors.Is(err, playback.ErrSessionNotFound):
		RespondError(w, r, http.StatusNotFound, ErrSessionNotFound)
		return
	case err != nil:
		RespondError(w, r, http.StatusInternalServerError, ErrInternalServer, err.Error())
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "session.closed").
		Str("session_id", id).
		Msg("session closed")

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	respondDecision(w, r, ctrl, ctrl.Play())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	respondDecision(w, r, ctrl, ctrl.Pause())
}

type seekRequest struct {
	PositionSeconds float64 `json:"position_seconds"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var req seekRequest
	if err := decodeBody(w, r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, err.Error())
		return
	}
	if math.IsNaN(req.PositionSeconds) || math.IsInf(req.PositionSeconds, 0) {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, "position_seconds must be finite")
		return
	}

	respondDecision(w, r, ctrl, ctrl.Seek(req.PositionSeconds))
}

type variantRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleSetVariant(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var req variantRequest
	if err := decodeBody(w, r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, err.Error())
		return
	}

	respondDecision(w, r, ctrl, ctrl.SetVariant(req.Index))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	respondDecision(w, r, ctrl, ctrl.Retry())
}

type signalRequest struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs"`
}

// handleSignal forwards an out-of-band product signal (qr_scan,
// compilation_start, compilation_complete) into the session's telemetry
// stream.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var req signalRequest
	if err := decodeBody(w, r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, err.Error())
		return
	}

	eventType, ok := telemetry.ParseSignalType(req.Type)
	if !ok {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidInput, "unknown signal type: "+req.Type)
		return
	}

	respondDecision(w, r, ctrl, ctrl.Signal(eventType, req.Attrs))
}
