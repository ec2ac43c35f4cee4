package session

import (
	"context"
	"time"

	"gatehouse/internal/models"
)

// UserStore is the part of the credential store the manager reads users from.
// Lookups return store.ErrNotFound for missing rows.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdatePasswordAndRevokeTokens stores the hash and revokes the user's
	// active refresh tokens atomically, returning how many it revoked. It
	// returns store.ErrNotFound, with nothing changed, when the user is no
	// longer at prevUpdatedAt.
	UpdatePasswordAndRevokeTokens(ctx context.Context, id, passwordHash string, prevUpdatedAt, updatedAt time.Time, reason string, now time.Time) (int64, error)
}

// RefreshTokenStore exposes one narrow operation per state transition.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// MarkTokenRotated revokes consumedID only if it is still active at now and
	// inserts replacement, atomically. It returns store.ErrNotFound when the
	// token was already revoked, expired or missing.
	MarkTokenRotated(ctx context.Context, consumedID string, replacement *models.RefreshToken, now time.Time) error

	RevokeRefreshToken(ctx context.Context, tokenHash, reason string) (int64, error)
	RevokeTokensForUser(ctx context.Context, userID, reason string, now time.Time) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type CredentialStore interface {
	UserStore
	RefreshTokenStore
}

type TokenIssuer interface {
	IssueAccessToken(user *models.User, roles []string, now time.Time) (string, time.Time, error)
	IssueRefreshToken() (string, error)
	RefreshTokenExpiry(now time.Time) time.Time
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
