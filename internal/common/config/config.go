package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlibekovAA/devicehub/internal/common/constants"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	HTTPPort                string
	StoreDriver             string
	DatabaseURL             string
	SQLitePath              string
	JWTSecret               string
	AccessTokenTTL          time.Duration
	SubscriptionInitialDays int
	AdminAuthRequired       bool
	AdminName               string
	AdminPassword           string
	RequestTimeout          time.Duration
	SessionStoreTimeout     time.Duration
	CircuitBreakerThreshold int32
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerReset     time.Duration
	Server                  ServerConfig
	WebSocket               WebSocketConfig
}

// ServerConfig holds the http.Server limits. They bound plain HTTP
// requests only; an upgraded /ws connection runs on WebSocketConfig.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		ReadTimeout:       constants.ServerReadTimeout,
		WriteTimeout:      constants.ServerWriteTimeout,
		IdleTimeout:       constants.ServerIdleTimeout,
	}
}

type WebSocketConfig struct {
	WriteWait   time.Duration
	PongWait    time.Duration
	PingPeriod  time.Duration
	MaxMsgSize  int64
	SendBufSize int
	SendTimeout time.Duration
}

func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:   constants.DefaultWebSocketWriteWait,
		PongWait:    constants.DefaultWebSocketPongWait,
		PingPeriod:  constants.DefaultWebSocketPingPeriod,
		MaxMsgSize:  constants.DefaultWebSocketMaxMsgSize,
		SendBufSize: constants.DefaultWebSocketSendBufSize,
		SendTimeout: constants.DefaultWebSocketSendTimeout,
	}
}

func Load() (Config, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return Config{}, err
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", constants.DefaultStoreDriver))

	cfg := Config{
		HTTPPort:                getEnv("HTTP_PORT", constants.DefaultHTTPPort),
		StoreDriver:             driver,
		SQLitePath:              getEnv("SQLITE_PATH", constants.DefaultSQLitePath),
		JWTSecret:               jwtSecret,
		AccessTokenTTL:          getDurationEnv("ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL),
		SubscriptionInitialDays: getIntEnv("SUBSCRIPTION_INITIAL_DAYS", constants.DefaultSubscriptionInitialDays),
		AdminAuthRequired:       getBoolEnv("ADMIN_AUTH_REQUIRED", true),
		AdminName:               getEnv("ADMIN_NAME", ""),
		AdminPassword:           getEnv("ADMIN_PASSWORD", ""),
		RequestTimeout:          getDurationEnv("REQUEST_TIMEOUT", constants.DefaultRequestTimeout),
		SessionStoreTimeout:     getDurationEnv("SESSION_STORE_TIMEOUT", constants.DefaultSessionStoreTimeout),
		CircuitBreakerThreshold: int32(getIntEnv("CIRCUIT_BREAKER_THRESHOLD", constants.DefaultCircuitBreakerThreshold)),
		CircuitBreakerTimeout:   getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", constants.DefaultCircuitBreakerTimeout),
		CircuitBreakerReset:     getDurationEnv("CIRCUIT_BREAKER_RESET", constants.DefaultCircuitBreakerReset),
		Server: ServerConfig{
			ReadHeaderTimeout: getDurationEnv("HTTP_READ_HEADER_TIMEOUT", constants.ServerReadHeaderTimeout),
			ReadTimeout:       getDurationEnv("HTTP_READ_TIMEOUT", constants.ServerReadTimeout),
			WriteTimeout:      getDurationEnv("HTTP_WRITE_TIMEOUT", constants.ServerWriteTimeout),
			IdleTimeout:       getDurationEnv("HTTP_IDLE_TIMEOUT", constants.ServerIdleTimeout),
		},
		WebSocket: WebSocketConfig{
			WriteWait:   getDurationEnv("WS_WRITE_WAIT", constants.DefaultWebSocketWriteWait),
			PongWait:    getDurationEnv("WS_PONG_WAIT", constants.DefaultWebSocketPongWait),
			PingPeriod:  getDurationEnv("WS_PING_PERIOD", constants.DefaultWebSocketPingPeriod),
			MaxMsgSize:  getInt64Env("WS_MAX_MSG_SIZE", constants.DefaultWebSocketMaxMsgSize),
			SendBufSize: getIntEnv("WS_SEND_BUF_SIZE", constants.DefaultWebSocketSendBufSize),
			SendTimeout: getDurationEnv("WS_SEND_TIMEOUT", constants.DefaultWebSocketSendTimeout),
		},
	}

	switch driver {
	case StoreDriverPostgres:
		cfg.DatabaseURL, err = mustEnv("DATABASE_URL")
		if err != nil {
			return Config{}, err
		}
	case StoreDriverSQLite:
	default:
		return Config{}, fmt.Errorf("%w: %s", commonerrors.ErrUnknownStoreDriver, driver)
	}

	if cfg.WebSocket.PingPeriod >= cfg.WebSocket.PongWait {
		cfg.WebSocket.PingPeriod = (cfg.WebSocket.PongWait * 9) / 10
	}

	return cfg, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", commonerrors.ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", commonerrors.ErrMissingRequiredEnv, key)
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64Env(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
