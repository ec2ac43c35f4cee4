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

const userColumns = `id, email, display_name, password_hash, role, active, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create assigns an ID when the user has none and truncates timestamps to
// seconds. Duplicate emails return ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		id, err := GenerateID(constants.IDPrefixUser)
		if err != nil {
			return fmt.Errorf("generating user ID: %w", err)
		}
		u.ID = id
	}
	// Guarded updates compare updated_at by equality.
	u.CreatedAt = u.CreatedAt.UTC().Truncate(time.Second)
	u.UpdatedAt = u.UpdatedAt.UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Role, u.Active, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return wrapErr("creating user", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, wrapErr("querying users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr("scanning user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating users", err)
	}
	return users, nil
}

// UpdateDisplayName only applies when the row is still at prevUpdatedAt.
func (r *UserRepository) UpdateDisplayName(ctx context.Context, id, displayName string, prevUpdatedAt, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE users SET display_name = ?, updated_at = ? WHERE id = ? AND updated_at = ?`),
		displayName, updatedAt.UTC(), id, prevUpdatedAt.UTC(),
	)
	if err != nil {
		return wrapErr("updating display name", err)
	}
	return requireRow("updating display name", result)
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string, prevUpdatedAt, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ? AND updated_at = ?`),
		email, updatedAt.UTC(), id, prevUpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return wrapErr("updating email", err)
	}
	return requireRow("updating email", result)
}

// UpdatePasswordRevokingTokens stores the new hash and revokes every active
// refresh token of the user in one transaction. Either both happen or
// neither; a stale prevUpdatedAt returns ErrNotFound and revokes nothing.
func (r *UserRepository) UpdatePasswordRevokingTokens(ctx context.Context, id, passwordHash string, prevUpdatedAt, updatedAt time.Time, reason string, now time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("starting password change transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND updated_at = ?`),
		passwordHash, updatedAt.UTC(), id, prevUpdatedAt.UTC(),
	)
	if err != nil {
		return 0, wrapErr("updating password", err)
	}
	if err := requireRow("updating password", result); err != nil {
		return 0, err
	}

	revoked, err := revokeUserTokens(ctx, r.db, tx, id, reason, now)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("committing password change", err)
	}
	return revoked, nil
}

// SetActive returns ErrNotFound when the user is missing or already in the requested state.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ? AND active = ?`),
		active, updatedAt.UTC(), id, !active,
	)
	if err != nil {
		return wrapErr("updating active flag", err)
	}
	return requireRow("setting active flag", result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, r.db.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("querying user", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.Role,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
