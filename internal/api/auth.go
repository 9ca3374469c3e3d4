package api

import (
	"log/slog"
	"net/http"

	"github.com/vitalog/vitalog/internal/auth"
)

// authHandler serves account and token endpoints.
type authHandler struct {
	service *auth.Service
	logger  *slog.Logger
}

// authResponse is the register/login payload: the profile plus a fresh
// token pair.
type authResponse struct {
	User         *auth.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int64      `json:"expiresIn"`
}

func newAuthResponse(user *auth.User, pair *auth.TokenPair) authResponse {
	return authResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

// register handles POST /api/v1/auth/register.
func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	user, pair, err := h.service.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, newAuthResponse(user, pair))
}

// login handles POST /api/v1/auth/login.
func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	user, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, newAuthResponse(user, pair))
}

// refresh handles POST /api/v1/auth/refresh. The used refresh token is
// rotated: revoked and replaced by the returned one.
func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, pair)
}

// logout handles POST /api/v1/auth/logout. Revoking an already-revoked or
// unknown token is still a 204; logout is idempotent.
func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/v1/auth/me.
func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing_token", "authorization required", h.logger)
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// updateMe handles PATCH /api/v1/auth/me.
func (h *authHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing_token", "authorization required", h.logger)
		return
	}

	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), userID, req.DisplayName)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}
