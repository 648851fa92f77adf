package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/Syddevv/SpenSyd-Server/internal/pkg/validate"
)

// Error kinds returned alongside the HTTP status.
const (
	KindConflict     = "conflict"
	KindNotFound     = "not_found"
	KindExpired      = "expired"
	KindMismatch     = "mismatch"
	KindInvalidFlow  = "invalid_flow"
	KindTooMany      = "too_many_attempts"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindBadRequest   = "bad_request"
	KindInternal     = "internal"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// LoginEnvelope wraps a successful login.
type LoginEnvelope struct {
	Message string             `json:"message,omitempty"`
	Token   string             `json:"token"`
	User    *domain.PublicUser `json:"user"`
}

type UserEnvelope struct {
	Message string             `json:"message,omitempty"`
	User    *domain.PublicUser `json:"user"`
}

// ResetTokenEnvelope carries the continuation token of a verified reset code.
type ResetTokenEnvelope struct {
	Message    string `json:"message,omitempty"`
	ResetToken string `json:"reset_token"`
}

type ActivityEnvelope struct {
	Activity *domain.Activity `json:"activity"`
}

type ActivitiesEnvelope struct {
	Activities []domain.Activity `json:"activities"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, Kind: kind})
}

// httpError maps a service error to its HTTP status and kind. Internal causes are logged, not returned.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, kind, "internal server error")
		return
	}
	writeError(w, status, kind, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInternal):
		return http.StatusInternalServerError, KindInternal
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, KindConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone, KindExpired
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, KindTooMany
	case errors.Is(err, domain.ErrMismatch):
		return http.StatusBadRequest, KindMismatch
	case errors.Is(err, domain.ErrInvalidFlow):
		return http.StatusConflict, KindInvalidFlow
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, KindUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, KindForbidden
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, KindBadRequest
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// decode reads a JSON body into dst and validates it. It writes the error response itself
// and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, KindBadRequest, err.Error())
		return false
	}
	return true
}
