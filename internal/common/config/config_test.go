package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "21127", cfg.HTTPPort)
	assert.Equal(t, StoreDriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 365, cfg.SubscriptionInitialDays)
	assert.True(t, cfg.AdminAuthRequired)
	assert.Less(t, cfg.WebSocket.PingPeriod, cfg.WebSocket.PongWait)
	assert.Equal(t, DefaultServerConfig(), cfg.Server)
}

func TestLoad_ServerOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("HTTP_READ_TIMEOUT", "5s")
	t.Setenv("HTTP_IDLE_TIMEOUT", "3m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, DefaultServerConfig().WriteTimeout, cfg.Server.WriteTimeout)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.True(t, errors.Is(err, commonerrors.ErrMissingRequiredEnv))
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.True(t, errors.Is(err, commonerrors.ErrInvalidJWTSecret))
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.True(t, errors.Is(err, commonerrors.ErrMissingRequiredEnv))
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.True(t, errors.Is(err, commonerrors.ErrUnknownStoreDriver))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/devicehub")
	t.Setenv("WS_PONG_WAIT", "10s")
	t.Setenv("WS_PING_PERIOD", "20s")
	t.Setenv("ADMIN_AUTH_REQUIRED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/devicehub", cfg.DatabaseURL)
	assert.False(t, cfg.AdminAuthRequired)
	assert.Equal(t, 9*time.Second, cfg.WebSocket.PingPeriod)
}
