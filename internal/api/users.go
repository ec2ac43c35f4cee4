package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/account"
	"gatehouse/internal/apperr"
	"gatehouse/internal/models"
	"gatehouse/internal/session"
)

type UserHandler struct {
	accounts *account.Service
	sessions *session.Manager
}

func NewUserHandler(accounts *account.Service, sessions *session.Manager) *UserHandler {
	return &UserHandler{accounts: accounts, sessions: sessions}
}

type UpdateMeRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=64"`
}

type ChangeEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=72"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

type UserListResponse struct {
	Users []*models.User `json:"users"`
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, tag, err := h.accounts.Get(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTagged(w, r, http.StatusOK, tag, user)
}

// PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID := principal(r).UserID
	if req.DisplayName == nil {
		h.GetMe(w, r)
		return
	}

	displayName := sanitizeText(*req.DisplayName)
	if displayName == "" {
		writeError(w, r, displayNameRequired())
		return
	}

	user, tag, err := h.accounts.UpdateDisplayName(r.Context(), userID, r.Header.Get("If-Match"), displayName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTagged(w, r, http.StatusOK, tag, user)
}

// PUT /api/v1/users/me/email
func (h *UserHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req ChangeEmailRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, tag, err := h.accounts.ChangeEmail(r.Context(), principal(r).UserID, r.Header.Get("If-Match"), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTagged(w, r, http.StatusOK, tag, user)
}

// PUT /api/v1/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.sessions.ChangePassword(r.Context(), principal(r).UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RevokedResponse{Revoked: n})
}

// GET /api/v1/users
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	users, tag, err := h.accounts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	writeTagged(w, r, http.StatusOK, tag, UserListResponse{Users: users})
}

// POST /api/v1/users/{id}/deactivate
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	n, err := h.accounts.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RevokedResponse{Revoked: n})
}

// POST /api/v1/users/{id}/activate
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Activate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func displayNameRequired() error {
	return apperr.Validation("One or more fields are invalid", map[string][]string{
		"displayName": {"is required"},
	})
}
