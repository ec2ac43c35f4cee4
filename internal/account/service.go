// Package account manages user profiles and administrative account state.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gatehouse/internal/apperr"
	"gatehouse/internal/auth"
	"gatehouse/internal/etag"
	"gatehouse/internal/models"
	"gatehouse/internal/store"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string, prevUpdatedAt, updatedAt time.Time) error
	UpdateEmail(ctx context.Context, id, email string, prevUpdatedAt, updatedAt time.Time) error
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
}

type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID, reason string) (int64, error)
}

type Service struct {
	users    UserStore
	sessions SessionRevoker
	now      func() time.Time
	log      *slog.Logger
}

func NewService(users UserStore, sessions SessionRevoker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		now:      time.Now,
		log:      log.With("component", "account"),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, string, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return u, etag.For(u.ID, u.UpdatedAt), nil
}

// List is restricted to admins.
func (s *Service) List(ctx context.Context) ([]*models.User, string, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, "", err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "error listing users", "error", err)
		return nil, "", store.AsAppError(err)
	}
	return users, etag.ForCollection(users), nil
}

func (s *Service) UpdateDisplayName(ctx context.Context, id, ifMatch, displayName string) (*models.User, string, error) {
	displayName = strings.TrimSpace(displayName)
	return s.guardedWrite(ctx, id, ifMatch, func(u *models.User, next time.Time) error {
		if err := s.users.UpdateDisplayName(ctx, u.ID, displayName, u.UpdatedAt, next); err != nil {
			return err
		}
		u.DisplayName = displayName
		return nil
	})
}

func (s *Service) ChangeEmail(ctx context.Context, id, ifMatch, email string) (*models.User, string, error) {
	email = models.NormalizeEmail(email)
	return s.guardedWrite(ctx, id, ifMatch, func(u *models.User, next time.Time) error {
		if err := s.users.UpdateEmail(ctx, u.ID, email, u.UpdatedAt, next); err != nil {
			return err
		}
		u.Email = email
		return nil
	})
}

// Deactivate blocks login and revokes every session of the user.
func (s *Service) Deactivate(ctx context.Context, id string) (int64, error) {
	if err := requireAdmin(ctx); err != nil {
		return 0, err
	}
	if p, _ := auth.PrincipalFrom(ctx); p.UserID == id {
		return 0, apperr.Conflict("You cannot deactivate your own account")
	}

	if err := s.setActive(ctx, id, false); err != nil {
		return 0, err
	}

	n, err := s.sessions.LogoutAll(ctx, id, models.RevokeReasonDeactivated)
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "account deactivated", "user_id", id, "revoked_sessions", n)
	return n, nil
}

func (s *Service) Activate(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.setActive(ctx, id, true); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "account activated", "user_id", id)
	return nil
}

// setActive treats a user already in the requested state as success.
func (s *Service) setActive(ctx context.Context, id string, active bool) error {
	u, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if u.Active == active {
		return nil
	}

	err = s.users.SetActive(ctx, id, active, etag.NextVersion(u.UpdatedAt, s.now()))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.ErrorContext(ctx, "error updating account state", "error", err, "user_id", id)
		return store.AsAppError(err)
	}
	return nil
}

func (s *Service) guardedWrite(ctx context.Context, id, ifMatch string, write func(u *models.User, next time.Time) error) (*models.User, string, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, "", err
	}

	currentTag := etag.For(u.ID, u.UpdatedAt)
	if etag.ValidateConditionalWrite(ifMatch, currentTag) == etag.Reject {
		return nil, "", apperr.PreconditionFailed(currentTag, ifMatch)
	}

	next := etag.NextVersion(u.UpdatedAt, s.now())
	if err := write(u, next); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, "", apperr.Conflict("An account with this email already exists")
		case errors.Is(err, store.ErrNotFound):
			latest, findErr := s.find(ctx, id)
			if findErr != nil {
				return nil, "", findErr
			}
			presented := ifMatch
			if presented == "" {
				presented = currentTag
			}
			return nil, "", apperr.PreconditionFailed(etag.For(latest.ID, latest.UpdatedAt), presented)
		default:
			s.log.ErrorContext(ctx, "error updating account", "error", err, "user_id", id)
			return nil, "", store.AsAppError(err)
		}
	}

	u.UpdatedAt = next
	return u, etag.For(u.ID, u.UpdatedAt), nil
}

func (s *Service) find(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		s.log.ErrorContext(ctx, "error finding user", "error", err, "user_id", id)
		return nil, store.AsAppError(err)
	}
	return u, nil
}

func requireAdmin(ctx context.Context) error {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return apperr.Unauthenticated("Authentication required")
	}
	if !p.IsAdmin() {
		return apperr.Forbidden("Administrator role required")
	}
	return nil
}
