package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/models"
	"gatehouse/internal/store"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &DB{DB: conn, driver: DriverPostgres}, mock
}

func TestFindByHashTransientError(t *testing.T) {
	database, mock := newMockDB(t)

	q := `(?s)^SELECT\s+id,\s*token_hash,.*FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("h").WillReturnError(context.DeadlineExceeded)

	_, err := NewRefreshTokenRepository(database).FindByHash(context.Background(), "h")
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashPermanentError(t *testing.T) {
	database, mock := newMockDB(t)

	mock.ExpectQuery(`FROM\s+refresh_tokens`).WithArgs("h").WillReturnError(errors.New("syntax error"))

	_, err := NewRefreshTokenRepository(database).FindByHash(context.Background(), "h")
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrUnavailable)
	require.Contains(t, err.Error(), "querying refresh token")
}

func TestRotateRollsBackWhenTokenConsumed(t *testing.T) {
	database, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+refresh_tokens\s+SET\s+is_revoked\s*=\s*\$1.*WHERE\s+id\s*=\s*\$4`).
		WithArgs(true, models.RevokeReasonRotated, "rft_new", "rft_old", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	replacement := &models.RefreshToken{ID: "rft_new", UserID: "usr_1", TokenHash: "h2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	err := NewRefreshTokenRepository(database).Rotate(context.Background(), "rft_old", replacement, now)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateCommitFailureIsTransient(t *testing.T) {
	database, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+refresh_tokens`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+refresh_tokens`).
		WithArgs("rft_new", "h2", "usr_1", sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(driver.ErrBadConn)

	replacement := &models.RefreshToken{ID: "rft_new", UserID: "usr_1", TokenHash: "h2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	err := NewRefreshTokenRepository(database).Rotate(context.Background(), "rft_old", replacement, now)
	require.ErrorIs(t, err, store.ErrUnavailable)
}

func TestPasswordChangeRollsBackWhenRevokeFails(t *testing.T) {
	database, mock := newMockDB(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$1.*WHERE\s+id\s*=\s*\$3\s+AND\s+updated_at\s*=\s*\$4`).
		WithArgs("new-hash", sqlmock.AnyArg(), "usr_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^UPDATE\s+refresh_tokens\s+SET\s+is_revoked`).
		WithArgs(true, models.RevokeReasonPassword, "usr_1", false, sqlmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := NewUserRepository(database).UpdatePasswordRevokingTokens(context.Background(),
		"usr_1", "new-hash", now.Add(-time.Hour), now, models.RevokeReasonPassword, now)
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
