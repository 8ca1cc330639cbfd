//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

func setupPostgres(t *testing.T) *PgRepository {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "devicehub",
				"POSTGRES_PASSWORD": "devicehub",
				"POSTGRES_DB":       "devicehub",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://devicehub:devicehub@%s:%s/devicehub?sslmode=disable", host, port.Port())
	pool, err := pgxpool.Connect(ctx, dsn)
	require.NoError(t, err)

	require.NoError(t, MigratePostgres(ctx, pool))

	repo := NewPgRepository(pool)
	t.Cleanup(repo.Close)
	return repo
}

func TestPgRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := setupPostgres(t)

	user := domain.User{
		ID:             domain.ID(uuid.NewString()),
		Name:           "alice",
		PasswordHash:   "hash",
		Role:           domain.RoleUser,
		ExpirationDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.ErrorIs(t, repo.Create(ctx, user), commonerrors.ErrNameTaken)

	found, err := repo.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.True(t, user.ExpirationDate.Equal(found.ExpirationDate))

	require.NoError(t, repo.SetLogged(ctx, user.ID, true))
	require.NoError(t, repo.UpsertRunningApp(ctx, domain.RunningApp{UserID: user.ID, Name: "A", StartAt: time.Now()}))
	require.NoError(t, repo.UpsertRunningApp(ctx, domain.RunningApp{UserID: user.ID, Name: "B", StartAt: time.Now()}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].App)
	assert.Equal(t, "B", list[0].App.Name)
	assert.True(t, list[0].IsLogged)

	extended, err := repo.UpdateExpiration(ctx, user.ID, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) })
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC).Equal(extended))

	require.NoError(t, repo.ResetPresence(ctx))
	_, err = repo.FindRunningApp(ctx, user.ID)
	assert.ErrorIs(t, err, ErrRunningAppNotFound)

	require.NoError(t, repo.Delete(ctx, user.ID))
	_, err = repo.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, commonerrors.ErrUserNotFound)
}
