package constants

import "time"

const (
	NameMinLength      = 3
	NameMaxLength      = 32
	PasswordMinLength  = 4
	PasswordMaxLength  = 72
	JWTSecretMinLength = 32

	WarningWindowDays = 7
	HoursPerDay       = 24

	MaxExtendDays   = 3650
	MaxExtendMonths = 120

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 2
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultHTTPPort                = "21127"
	DefaultStoreDriver             = "sqlite"
	DefaultSQLitePath              = "devicehub.db"
	DefaultAccessTokenTTL          = 24 * time.Hour
	DefaultSubscriptionInitialDays = 365
	DefaultRequestTimeout          = 5 * time.Second
	DefaultSessionStoreTimeout     = 5 * time.Second

	DefaultCircuitBreakerThreshold = 50
	DefaultCircuitBreakerTimeout   = 5 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultWebSocketWriteWait   = 10 * time.Second
	DefaultWebSocketPongWait    = 60 * time.Second
	DefaultWebSocketPingPeriod  = 54 * time.Second
	DefaultWebSocketMaxMsgSize  = 64 * 1024
	DefaultWebSocketSendBufSize = 16
	DefaultWebSocketSendTimeout = 2 * time.Second

	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	RateLimitLoginRequestsPerSecond    = 5.0
	RateLimitLoginBurst                = 10
	RateLimitRegisterRequestsPerSecond = 1.0
	RateLimitRegisterBurst             = 5
	RateLimitCleanupInterval           = 5 * time.Minute

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
