package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

var baseTime = time.Date(2024, 5, 1, 10, 30, 0, 123456789, time.UTC)

func setupSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func newUser(name string) domain.User {
	return domain.User{
		ID:             domain.ID(uuid.NewString()),
		Name:           name,
		PasswordHash:   "hash-" + name,
		Role:           domain.RoleUser,
		ExpirationDate: baseTime.Add(30 * 24 * time.Hour),
		CreatedAt:      baseTime,
	}
}

func TestSQLiteRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")

	require.NoError(t, repo.Create(ctx, user))

	byName, err := repo.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user, byName)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, byID)
}

func TestSQLiteRepository_DuplicateName(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)

	require.NoError(t, repo.Create(ctx, newUser("alice")))
	err := repo.Create(ctx, newUser("alice"))
	assert.ErrorIs(t, err, commonerrors.ErrNameTaken)
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	missing := domain.ID(uuid.NewString())

	_, err := repo.FindByName(ctx, "ghost")
	assert.ErrorIs(t, err, commonerrors.ErrUserNotFound)

	_, err = repo.FindByID(ctx, missing)
	assert.ErrorIs(t, err, commonerrors.ErrUserNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, missing), commonerrors.ErrUserNotFound)
	assert.ErrorIs(t, repo.SetBlocked(ctx, missing, true), commonerrors.ErrUserNotFound)

	_, err = repo.UpdateExpiration(ctx, missing, func(t time.Time) time.Time { return t })
	assert.ErrorIs(t, err, commonerrors.ErrUserNotFound)
}

func TestSQLiteRepository_SetLoggedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.SetLogged(ctx, user.ID, true))
	require.NoError(t, repo.SetLogged(ctx, user.ID, true))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLogged)

	assert.NoError(t, repo.SetLogged(ctx, domain.ID(uuid.NewString()), true))
}

func TestSQLiteRepository_RunningAppUpsert(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.UpsertRunningApp(ctx, domain.RunningApp{UserID: user.ID, Name: "A", StartAt: baseTime}))
	later := baseTime.Add(time.Minute)
	require.NoError(t, repo.UpsertRunningApp(ctx, domain.RunningApp{UserID: user.ID, Name: "B", StartAt: later}))

	app, err := repo.FindRunningApp(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", app.Name)
	assert.True(t, later.Equal(app.StartAt))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].App)
	assert.Equal(t, "B", list[0].App.Name)
}

func TestSQLiteRepository_DeleteRunningAppsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	assert.NoError(t, repo.DeleteRunningApps(ctx, user.ID))

	_, err := repo.FindRunningApp(ctx, user.ID)
	assert.ErrorIs(t, err, ErrRunningAppNotFound)
}

func TestSQLiteRepository_DeleteCascadesRunningApp(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.UpsertRunningApp(ctx, domain.RunningApp{UserID: user.ID, Name: "A", StartAt: baseTime}))

	require.NoError(t, repo.Delete(ctx, user.ID))

	_, err := repo.FindRunningApp(ctx, user.ID)
	assert.ErrorIs(t, err, ErrRunningAppNotFound)
}

func TestSQLiteRepository_UpdateExpirationIsAdditive(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")
	user.ExpirationDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, user))

	addMonth := func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }

	first, err := repo.UpdateExpiration(ctx, user.ID, addMonth)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), first)

	second, err := repo.UpdateExpiration(ctx, user.ID, addMonth)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), second)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second, stored.ExpirationDate)
}

func TestSQLiteRepository_ListWithoutApp(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	first := newUser("alice")
	second := newUser("bob")
	second.CreatedAt = baseTime.Add(time.Second)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Name)
	assert.Equal(t, "bob", list[1].Name)
	assert.Nil(t, list[0].App)
	assert.Nil(t, list[1].App)
}

func TestSQLiteRepository_ResetPresence(t *testing.T) {
	ctx := context.Background()
	repo := setupSQLite(t)
	user := newUser("alice")
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.SetLogged(ctx, user.ID, true))
	require.NoError(t, repo.UpsertRunningApp(ctx, domain.RunningApp{UserID: user.ID, Name: "A", StartAt: baseTime}))

	require.NoError(t, repo.ResetPresence(ctx))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLogged)

	_, err = repo.FindRunningApp(ctx, user.ID)
	assert.ErrorIs(t, err, ErrRunningAppNotFound)
}
