package api

import (
	"net/http"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/session"
)

type AuthHandler struct {
	sessions *session.Manager
}

func NewAuthHandler(sessions *session.Manager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"displayName" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,max=512"`
}

type AuthResponse struct {
	AccessToken           string       `json:"accessToken"`
	RefreshToken          string       `json:"refreshToken"`
	TokenType             string       `json:"tokenType"`
	ExpiresIn             int64        `json:"expiresIn"`
	AccessTokenExpiresAt  time.Time    `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time    `json:"refreshTokenExpiresAt"`
	User                  *models.User `json:"user"`
}

type RevokedResponse struct {
	Revoked int64 `json:"revoked"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	displayName := sanitizeText(req.DisplayName)
	if displayName == "" {
		writeError(w, r, displayNameRequired())
		return
	}

	s, err := h.sessions.Register(r.Context(), req.Email, displayName, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSession(w, http.StatusCreated, s)
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSession(w, http.StatusOK, s)
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSession(w, http.StatusOK, s)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.LogoutAll(r.Context(), principal(r).UserID, models.RevokeReasonLogoutAll)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RevokedResponse{Revoked: n})
}

func writeSession(w http.ResponseWriter, status int, s *session.Session) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, AuthResponse{
		AccessToken:           s.AccessToken,
		RefreshToken:          s.RefreshToken,
		TokenType:             "Bearer",
		ExpiresIn:             int64(time.Until(s.AccessTokenExpiresAt).Round(time.Second).Seconds()),
		AccessTokenExpiresAt:  s.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: s.RefreshTokenExpiresAt,
		User:                  s.User,
	})
}
