package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatehouse/internal/constants"
	"gatehouse/internal/models"
)

const refreshTokenColumns = `id, token_hash, user_id, created_at, expires_at, is_revoked, revoked_reason, replaced_by_token`

type RefreshTokenRepository struct {
	db *DB
}

func NewRefreshTokenRepository(db *DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	if err := ensureTokenID(t); err != nil {
		return err
	}
	if err := insertRefreshToken(ctx, r.db, r.db.DB, t); err != nil {
		return wrapErr("creating refresh token", err)
	}
	return nil
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	t, err := scanRefreshToken(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`), tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("querying refresh token", err)
	}
	return t, nil
}

func (r *RefreshTokenRepository) ListForUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ? ORDER BY created_at`), userID)
	if err != nil {
		return nil, wrapErr("querying refresh tokens", err)
	}
	defer rows.Close()

	var tokens []*models.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, wrapErr("scanning refresh token", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating refresh tokens", err)
	}
	return tokens, nil
}

// Rotate revokes the consumed token and inserts its replacement in one
// transaction. The revoke only matches a still-active row, so of several
// concurrent rotations of the same token exactly one commits; the others get
// ErrNotFound and leave nothing behind.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, consumedTokenID string, replacement *models.RefreshToken, now time.Time) error {
	if err := ensureTokenID(replacement); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("starting refresh token rotation transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE refresh_tokens
            SET is_revoked = ?, revoked_reason = ?, replaced_by_token = ?
          WHERE id = ?
            AND is_revoked = ?
            AND expires_at > ?`),
		true,
		models.RevokeReasonRotated,
		replacement.ID,
		consumedTokenID,
		false,
		now.UTC(),
	)
	if err != nil {
		return wrapErr("revoking token during rotation", err)
	}

	if err := requireRow("rotating refresh token", result); err != nil {
		return err
	}

	if err := insertRefreshToken(ctx, r.db, tx, replacement); err != nil {
		return wrapErr("creating rotated refresh token", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("committing refresh token rotation", err)
	}

	return nil
}

// RevokeByHash revokes one active token. Missing or already revoked tokens
// affect no rows and are not an error.
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash, reason string) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE refresh_tokens SET is_revoked = ?, revoked_reason = ? WHERE token_hash = ? AND is_revoked = ?`),
		true, reason, tokenHash, false,
	)
	if err != nil {
		return 0, wrapErr("revoking token", err)
	}
	return affectedRows("revoking token", result)
}

// RevokeAllForUser revokes the user's active tokens; revoked and expired rows keep their state.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID, reason string, now time.Time) (int64, error) {
	return revokeUserTokens(ctx, r.db, r.db, userID, reason, now)
}

func revokeUserTokens(ctx context.Context, db *DB, ex execer, userID, reason string, now time.Time) (int64, error) {
	result, err := ex.ExecContext(ctx, db.rebind(
		`UPDATE refresh_tokens
            SET is_revoked = ?, revoked_reason = ?
          WHERE user_id = ?
            AND is_revoked = ?
            AND expires_at > ?`),
		true, reason, userID, false, now.UTC(),
	)
	if err != nil {
		return 0, wrapErr("revoking user tokens", err)
	}
	return affectedRows("revoking user tokens", result)
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM refresh_tokens WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, wrapErr("deleting expired tokens", err)
	}

	return affectedRows("deleting expired tokens", result)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRefreshToken(ctx context.Context, db *DB, ex execer, t *models.RefreshToken) error {
	_, err := ex.ExecContext(ctx, db.rebind(
		`INSERT INTO refresh_tokens (id, token_hash, user_id, created_at, expires_at, is_revoked) VALUES (?, ?, ?, ?, ?, ?)`),
		t.ID, t.TokenHash, t.UserID, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), false,
	)
	return err
}

func ensureTokenID(t *models.RefreshToken) error {
	if t.ID != "" {
		return nil
	}
	id, err := GenerateID(constants.IDPrefixRefreshToken)
	if err != nil {
		return fmt.Errorf("generating refresh token ID: %w", err)
	}
	t.ID = id
	return nil
}

func scanRefreshToken(row rowScanner) (*models.RefreshToken, error) {
	var (
		t          models.RefreshToken
		reason     sql.NullString
		replacedBy sql.NullString
	)
	err := row.Scan(
		&t.ID,
		&t.TokenHash,
		&t.UserID,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.IsRevoked,
		&reason,
		&replacedBy,
	)
	if err != nil {
		return nil, err
	}
	t.RevokedReason = nullStringToPtr(reason)
	t.ReplacedByToken = nullStringToPtr(replacedBy)
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return &t, nil
}
