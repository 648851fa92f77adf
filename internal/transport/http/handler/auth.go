package handler

import (
	"net/http"

	"github.com/Syddevv/SpenSyd-Server/internal/application/session"
	"github.com/Syddevv/SpenSyd-Server/internal/application/signup"
	"github.com/Syddevv/SpenSyd-Server/internal/application/user"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/Syddevv/SpenSyd-Server/internal/transport/http/middleware"
)

// AuthHandler handles signup, login and current-account endpoints.
type AuthHandler struct {
	signup  signup.Service
	session session.Service
	users   user.Service
}

func NewAuthHandler(signupSvc signup.Service, sessionSvc session.Service, userSvc user.Service) *AuthHandler {
	return &AuthHandler{signup: signupSvc, session: sessionSvc, users: userSvc}
}

func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.signup.RequestCode(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Verification code sent to email."})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.signup.ConfirmCode(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserEnvelope{Message: "Email verified and account created", User: u.Public()})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.session.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{Token: res.Token, User: res.User})
}

// Verify returns the account behind the bearer token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "unauthorized")
		return
	}
	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u.Public()})
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "unauthorized")
		return
	}
	if err := h.users.Delete(r.Context(), claims.UserID); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account deleted"})
}
