// Package session runs the authentication lifecycle: login, refresh-token
// rotation, logout and revocation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gatehouse/internal/apperr"
	"gatehouse/internal/auth"
	"gatehouse/internal/etag"
	"gatehouse/internal/models"
	"gatehouse/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password and inactive account alike.
	ErrInvalidCredentials = apperr.Unauthenticated("Invalid email or password")

	// ErrInvalidToken covers missing, revoked, rotated and expired refresh tokens alike.
	ErrInvalidToken = apperr.Unauthenticated("Invalid or expired refresh token")
)

type Session struct {
	User                  *models.User
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

type Manager struct {
	store       CredentialStore
	issuer      TokenIssuer
	hasher      PasswordHasher
	log         *slog.Logger
	now         func() time.Time
	adminEmails map[string]struct{}

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithAdminEmails grants the admin role to accounts registered with these emails.
func WithAdminEmails(emails []string) Option {
	return func(m *Manager) {
		for _, e := range emails {
			if e = models.NormalizeEmail(e); e != "" {
				m.adminEmails[e] = struct{}{}
			}
		}
	}
}

func NewManager(credentials CredentialStore, issuer TokenIssuer, hasher PasswordHasher, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:       credentials,
		issuer:      issuer,
		hasher:      hasher,
		log:         log.With("component", "session"),
		now:         time.Now,
		adminEmails: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Register(ctx context.Context, email, displayName, password string) (*Session, error) {
	email = models.NormalizeEmail(email)

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	role := models.RoleUser
	if _, ok := m.adminEmails[email]; ok {
		role = models.RoleAdmin
	}

	now := m.now().UTC().Truncate(time.Second)
	user := &models.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("An account with this email already exists")
		}
		m.log.ErrorContext(ctx, "error creating user", "error", err)
		return nil, store.AsAppError(err)
	}

	m.log.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return m.issueSession(ctx, user, m.now())
}

// Login never reveals which check failed: unknown email, wrong password and
// inactive account all return ErrInvalidCredentials after a bcrypt comparison.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = models.NormalizeEmail(email)

	user, err := m.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		_ = m.hasher.Compare(m.dummyPasswordHash(), password)
		m.log.InfoContext(ctx, "login rejected", "reason", "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		m.log.ErrorContext(ctx, "error finding user", "error", err)
		return nil, store.AsAppError(err)
	}

	if err := m.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			m.log.WarnContext(ctx, "password comparison failed", "user_id", user.ID, "error", err)
		}
		m.log.InfoContext(ctx, "login rejected", "reason", "password_mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		m.log.InfoContext(ctx, "login rejected", "reason", "inactive", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return m.issueSession(ctx, user, m.now())
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed by a conditional update, so concurrent calls with the same token
// yield exactly one session.
func (m *Manager) Refresh(ctx context.Context, presented string) (*Session, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, ErrInvalidToken
	}

	now := m.now()
	token, err := m.store.FindRefreshTokenByHash(ctx, auth.HashRefreshToken(presented))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		m.log.ErrorContext(ctx, "error finding refresh token", "error", err)
		return nil, store.AsAppError(err)
	}

	if state := token.State(now); state != models.TokenActive {
		if state == models.TokenRotated {
			m.log.WarnContext(ctx, "rotated refresh token presented again", "user_id", token.UserID, "token_id", token.ID)
		}
		return nil, ErrInvalidToken
	}

	user, err := m.store.FindUserByID(ctx, token.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		m.log.ErrorContext(ctx, "error finding user", "error", err)
		return nil, store.AsAppError(err)
	}
	if !user.Active {
		return nil, ErrInvalidToken
	}

	accessToken, accessExpiry, err := m.issuer.IssueAccessToken(user, user.Roles(), now)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rawRefresh, err := m.issuer.IssueRefreshToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	replacement := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(rawRefresh),
		CreatedAt: now.UTC(),
		ExpiresAt: m.issuer.RefreshTokenExpiry(now).UTC(),
	}

	if err := m.store.MarkTokenRotated(ctx, token.ID, replacement, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.InfoContext(ctx, "refresh token lost rotation race", "user_id", user.ID, "token_id", token.ID)
			return nil, ErrInvalidToken
		}
		m.log.ErrorContext(ctx, "error rotating refresh token", "error", err)
		return nil, store.AsAppError(err)
	}

	return &Session{
		User:                  user,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshToken:          rawRefresh,
		RefreshTokenExpiresAt: replacement.ExpiresAt,
	}, nil
}

// Logout revokes exactly the presented token. Unknown or already revoked
// tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}

	if _, err := m.store.RevokeRefreshToken(ctx, auth.HashRefreshToken(presented), models.RevokeReasonLogout); err != nil {
		m.log.ErrorContext(ctx, "error revoking refresh token", "error", err)
		return store.AsAppError(err)
	}
	return nil
}

// LogoutAll revokes every active token of the user and returns how many it revoked.
func (m *Manager) LogoutAll(ctx context.Context, userID, reason string) (int64, error) {
	if reason == "" {
		reason = models.RevokeReasonLogoutAll
	}

	n, err := m.store.RevokeTokensForUser(ctx, userID, reason, m.now())
	if err != nil {
		m.log.ErrorContext(ctx, "error revoking user tokens", "error", err, "user_id", userID)
		return 0, store.AsAppError(err)
	}

	m.log.InfoContext(ctx, "revoked user sessions", "user_id", userID, "count", n, "reason", reason)
	return n, nil
}

// ChangePassword stores a new hash and revokes every session of the user in
// the same write, so a failure leaves the old password and sessions intact.
func (m *Manager) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (int64, error) {
	user, err := m.store.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, apperr.NotFound("User not found")
	}
	if err != nil {
		return 0, store.AsAppError(err)
	}

	if err := m.hasher.Compare(user.PasswordHash, currentPassword); err != nil {
		return 0, apperr.Validation("Current password is incorrect", map[string][]string{
			"currentPassword": {"is incorrect"},
		})
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	now := m.now()
	revoked, err := m.store.UpdatePasswordAndRevokeTokens(ctx, user.ID, hash,
		user.UpdatedAt, etag.NextVersion(user.UpdatedAt, now), models.RevokeReasonPassword, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, apperr.Conflict("Account was modified concurrently, retry the request")
		}
		m.log.ErrorContext(ctx, "error changing password", "error", err, "user_id", user.ID)
		return 0, store.AsAppError(err)
	}

	m.log.InfoContext(ctx, "password changed", "user_id", user.ID, "revoked", revoked)
	return revoked, nil
}

// SweepExpired deletes expired rows. Validity never depends on it running.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredRefreshTokens(ctx, m.now())
	if err != nil {
		return 0, store.AsAppError(err)
	}
	return n, nil
}

func (m *Manager) issueSession(ctx context.Context, user *models.User, now time.Time) (*Session, error) {
	accessToken, accessExpiry, err := m.issuer.IssueAccessToken(user, user.Roles(), now)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rawRefresh, err := m.issuer.IssueRefreshToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	token := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(rawRefresh),
		CreatedAt: now.UTC(),
		ExpiresAt: m.issuer.RefreshTokenExpiry(now).UTC(),
	}
	if err := m.store.CreateRefreshToken(ctx, token); err != nil {
		m.log.ErrorContext(ctx, "error storing refresh token", "error", err, "user_id", user.ID)
		return nil, store.AsAppError(fmt.Errorf("persisting session: %w", err))
	}

	return &Session{
		User:                  user,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshToken:          rawRefresh,
		RefreshTokenExpiresAt: token.ExpiresAt,
	}, nil
}

func (m *Manager) dummyPasswordHash() string {
	m.dummyOnce.Do(func() {
		if hash, err := m.hasher.Hash("gatehouse-timing-equalizer"); err == nil {
			m.dummyHash = hash
		}
	})
	return m.dummyHash
}
