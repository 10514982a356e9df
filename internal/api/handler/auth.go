// internal/api/handler/auth.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"finflow-ledger/internal/api/middleware"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util"
)

// AuthHandler handles registration and token issuance.
type AuthHandler struct {
	responder
	service service.UserService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		responder: newResponder(logger),
		service:   svc,
	}
}

// CredentialsRequest is the body of both register and token requests.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Register handles user registration.
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, user)
}

// Token exchanges credentials for a bearer token.
// POST /auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	token, expiresAt, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithToken(w, token, expiresAt)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, token string, expiresAt time.Time) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}

// Refresh exchanges a valid, unexpired bearer token for a new one.
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.service.Refresh(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithToken(w, token, expiresAt)
}

// Me returns the authenticated user.
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, user)
}
