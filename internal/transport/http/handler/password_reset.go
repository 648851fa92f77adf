package handler

import (
	"net/http"

	"github.com/Syddevv/SpenSyd-Server/internal/application/recovery"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
)

// PasswordResetHandler handles the three password reset steps.
type PasswordResetHandler struct {
	svc recovery.Service
}

func NewPasswordResetHandler(svc recovery.Service) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc}
}

func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestReset(r.Context(), req.Email); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password reset code sent to email."})
}

func (h *PasswordResetHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	token, err := h.svc.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetTokenEnvelope{Message: "Code verified", ResetToken: token})
}

func (h *PasswordResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password updated"})
}
