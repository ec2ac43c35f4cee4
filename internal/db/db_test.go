package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatehouse/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func createTestUser(t *testing.T, database *DB, email string) *models.User {
	t.Helper()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &models.User{
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "hash",
		Role:         models.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, NewUserRepository(database).Create(context.Background(), u))
	return u
}

func TestOpenAppliesMigrations(t *testing.T) {
	database := openTestDB(t)

	for _, table := range []string{"users", "refresh_tokens", "products"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "whatever")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{"sqlite untouched", DriverSQLite, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = ? AND b = ?"},
		{"postgres numbered", DriverPostgres, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = $1 AND b = $2"},
		{"postgres no params", DriverPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DB{driver: tt.driver}
			if got := d.rebind(tt.query); got != tt.want {
				t.Fatalf("rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, err := GenerateID("usr")
	require.NoError(t, err)
	b, err := GenerateID("usr")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Regexp(t, `^usr_[0-9a-f]{24}$`, a)
}

func TestSQLiteDSNKeepsCallerParameters(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "plain_path",
			path: "data/app.db",
			want: "data/app.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name: "extra_parameter",
			path: "data/app.db?cache=shared",
			want: "data/app.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&cache=shared",
		},
		{
			name: "caller_override",
			path: "data/app.db?_busy_timeout=100",
			want: "data/app.db?_busy_timeout=100&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sqliteDSN(tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOpenWithParametersKeepsPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.db") + "?cache=private"
	database, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	var journal string
	require.NoError(t, database.QueryRow(`PRAGMA journal_mode`).Scan(&journal))
	require.Equal(t, "wal", journal)

	var foreignKeys int
	require.NoError(t, database.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)
}
