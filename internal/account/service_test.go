package account

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/apperr"
	"gatehouse/internal/auth"
	"gatehouse/internal/db"
	"gatehouse/internal/etag"
	"gatehouse/internal/models"
)

type recordingRevoker struct {
	userID string
	reason string
}

func (r *recordingRevoker) LogoutAll(_ context.Context, userID, reason string) (int64, error) {
	r.userID = userID
	r.reason = reason
	return 2, nil
}

type fixture struct {
	svc     *Service
	users   *db.UserRepository
	revoker *recordingRevoker
	alice   *models.User
	bob     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(context.Background(), db.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	users := db.NewUserRepository(database)
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mk := func(email, role string) *models.User {
		u := &models.User{Email: email, DisplayName: email, PasswordHash: "x", Role: role, Active: true, CreatedAt: created, UpdatedAt: created}
		require.NoError(t, users.Create(context.Background(), u))
		return u
	}

	revoker := &recordingRevoker{}
	return &fixture{
		svc:     NewService(users, revoker, slog.New(slog.NewTextHandler(io.Discard, nil))),
		users:   users,
		revoker: revoker,
		alice:   mk("alice@example.com", models.RoleAdmin),
		bob:     mk("bob@example.com", models.RoleUser),
	}
}

func as(u *models.User) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: u.ID, Email: u.Email, Roles: u.Roles()})
}

func TestUpdateDisplayName(t *testing.T) {
	f := newFixture(t)
	ctx := as(f.bob)

	_, tag, err := f.svc.Get(ctx, f.bob.ID)
	require.NoError(t, err)

	updated, newTag, err := f.svc.UpdateDisplayName(ctx, f.bob.ID, tag, "  Robert ")
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.DisplayName)
	assert.NotEqual(t, tag, newTag)

	// the old tag is now stale
	_, _, err = f.svc.UpdateDisplayName(ctx, f.bob.ID, tag, "Bobby")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindPreconditionFailed, appErr.Kind)
	assert.Equal(t, newTag, appErr.CurrentTag)

	stored, err := f.users.FindByID(context.Background(), f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robert", stored.DisplayName)
	assert.Equal(t, newTag, etag.For(stored.ID, stored.UpdatedAt))
}

func TestChangeEmailConflict(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.ChangeEmail(as(f.bob), f.bob.ID, "", "ALICE@example.com")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	u, _, err := f.svc.ChangeEmail(as(f.bob), f.bob.ID, "", "Robert@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "robert@example.com", u.Email)
}

func TestListRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.List(as(f.bob))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, _, err = f.svc.List(context.Background())
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	users, tag, err := f.svc.List(as(f.alice))
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, etag.ForCollection(users), tag)
}

func TestDeactivateRevokesSessions(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Deactivate(as(f.bob), f.alice.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = f.svc.Deactivate(as(f.alice), f.alice.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	n, err := f.svc.Deactivate(as(f.alice), f.bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, f.bob.ID, f.revoker.userID)
	assert.Equal(t, models.RevokeReasonDeactivated, f.revoker.reason)

	stored, err := f.users.FindByID(context.Background(), f.bob.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	require.NoError(t, f.svc.Activate(as(f.alice), f.bob.ID))
	require.NoError(t, f.svc.Activate(as(f.alice), f.bob.ID))

	stored, err = f.users.FindByID(context.Background(), f.bob.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	_, err = f.svc.Deactivate(as(f.alice), "usr_missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
