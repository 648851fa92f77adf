package handler

import (
	"net/http"

	"github.com/Syddevv/SpenSyd-Server/internal/application/emailchange"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/Syddevv/SpenSyd-Server/internal/transport/http/middleware"
)

// EmailChangeHandler handles the email change steps of the logged-in user.
type EmailChangeHandler struct {
	svc emailchange.Service
}

func NewEmailChangeHandler(svc emailchange.Service) *EmailChangeHandler {
	return &EmailChangeHandler{svc: svc}
}

func (h *EmailChangeHandler) CurrentCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	if err := h.svc.SendCurrentEmailCode(r.Context(), userID); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Verification code sent to your current email."})
}

func (h *EmailChangeHandler) VerifyCurrent(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	var req domain.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.VerifyCurrentEmailCode(r.Context(), userID, req.Code); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Current email verified"})
}

func (h *EmailChangeHandler) NewCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	var req domain.NewEmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SendNewEmailCode(r.Context(), userID, req.NewEmail); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Verification code sent to your new email."})
}

func (h *EmailChangeHandler) VerifyNew(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	var req domain.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.VerifyNewEmailCodeAndUpdate(r.Context(), userID, req.Code)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Message: "Email updated", User: u.Public()})
}

func userIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}
