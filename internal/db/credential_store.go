package db

import (
	"context"
	"time"

	"gatehouse/internal/models"
)

// CredentialStore joins the user and refresh token repositories behind the
// operations the session manager needs.
type CredentialStore struct {
	users  *UserRepository
	tokens *RefreshTokenRepository
}

func NewCredentialStore(users *UserRepository, tokens *RefreshTokenRepository) *CredentialStore {
	return &CredentialStore{users: users, tokens: tokens}
}

func (s *CredentialStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.users.Create(ctx, u)
}

func (s *CredentialStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *CredentialStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *CredentialStore) UpdatePasswordAndRevokeTokens(ctx context.Context, id, passwordHash string, prevUpdatedAt, updatedAt time.Time, reason string, now time.Time) (int64, error) {
	return s.users.UpdatePasswordRevokingTokens(ctx, id, passwordHash, prevUpdatedAt, updatedAt, reason, now)
}

func (s *CredentialStore) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return s.tokens.Create(ctx, t)
}

func (s *CredentialStore) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return s.tokens.FindByHash(ctx, tokenHash)
}

func (s *CredentialStore) MarkTokenRotated(ctx context.Context, consumedID string, replacement *models.RefreshToken, now time.Time) error {
	return s.tokens.Rotate(ctx, consumedID, replacement, now)
}

func (s *CredentialStore) RevokeRefreshToken(ctx context.Context, tokenHash, reason string) (int64, error) {
	return s.tokens.RevokeByHash(ctx, tokenHash, reason)
}

func (s *CredentialStore) RevokeTokensForUser(ctx context.Context, userID, reason string, now time.Time) (int64, error) {
	return s.tokens.RevokeAllForUser(ctx, userID, reason, now)
}

func (s *CredentialStore) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return s.tokens.DeleteExpired(ctx, now)
}
