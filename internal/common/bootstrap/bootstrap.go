package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhttp "github.com/AlibekovAA/devicehub/internal/admin/http"
	authhttp "github.com/AlibekovAA/devicehub/internal/auth/http"
	authservice "github.com/AlibekovAA/devicehub/internal/auth/service"
	commandservice "github.com/AlibekovAA/devicehub/internal/command/service"
	"github.com/AlibekovAA/devicehub/internal/common/clock"
	"github.com/AlibekovAA/devicehub/internal/common/config"
	"github.com/AlibekovAA/devicehub/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/devicehub/internal/common/crypto"
	"github.com/AlibekovAA/devicehub/internal/common/db"
	commonhttp "github.com/AlibekovAA/devicehub/internal/common/http"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/common/resilience"
	srv "github.com/AlibekovAA/devicehub/internal/common/server"
	devicews "github.com/AlibekovAA/devicehub/internal/device/websocket"
	"github.com/AlibekovAA/devicehub/internal/presence"
	userrepo "github.com/AlibekovAA/devicehub/internal/user/repository"
)

type App struct {
	Config   config.Config
	Log      *logger.Logger
	Store    userrepo.Repository
	Registry *presence.Registry
	Sessions *devicews.SessionManager
	Auth     *authservice.AuthService
	Commands *commandservice.Dispatcher
	Handler  http.Handler

	limiter *commonhttp.AuthRateLimiter
	cancel  context.CancelFunc
}

// NewApp opens the store, reconciles presence and wires every component
// onto one handler.
func NewApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	appCtx, cancel := context.WithCancel(context.Background())

	store, err := openStore(ctx, appCtx, cfg, log)
	if err != nil {
		cancel()
		return nil, err
	}

	// The registry is empty at startup, so no user can be logged in.
	if err := db.RetryWithBackoff(ctx, log, db.DefaultRetryConfig, func() error {
		return store.ResetPresence(ctx)
	}); err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("failed to reset presence: %w", err)
	}

	clk := clock.NewRealClock()
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  cfg.CircuitBreakerThreshold,
		Timeout:    cfg.CircuitBreakerTimeout,
		ResetAfter: cfg.CircuitBreakerReset,
		Name:       "identity_store",
		Clock:      clk,
		Logger:     log,
	})

	tokens := authservice.NewTokenIssuer(cfg.JWTSecret, commoncrypto.NewULIDGenerator(), cfg.AccessTokenTTL, clk)
	auth := authservice.NewAuthService(
		store,
		commoncrypto.NewBcryptHasher(),
		commoncrypto.NewUUIDGenerator(),
		tokens,
		clk,
		authservice.Config{
			SubscriptionInitialDays: cfg.SubscriptionInitialDays,
			Breaker:                 breaker,
		},
		log,
	)

	if err := auth.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPassword); err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("failed to create admin account: %w", err)
	}

	registry := presence.NewRegistry()
	sessions := devicews.NewSessionManager(registry, store, clk, log, devicews.ManagerConfig{
		StoreTimeout: cfg.SessionStoreTimeout,
		Breaker:      breaker,
	})
	commands := commandservice.NewDispatcher(store, registry, commandservice.Config{
		Breaker:     breaker,
		PushTimeout: cfg.WebSocket.SendTimeout,
	}, log)

	limiter := commonhttp.NewAuthRateLimiter()

	api := http.NewServeMux()
	authhttp.NewHandler(auth, limiter, cfg.RequestTimeout, log).Routes(api)
	adminhttp.NewHandler(commands, adminhttp.Config{
		AuthRequired: cfg.AdminAuthRequired,
		JWTSecret:    cfg.JWTSecret,
		Timeout:      cfg.RequestTimeout,
	}, log).Routes(api)
	api.HandleFunc("GET /health", commonhttp.HealthHandler(store, log))
	api.Handle("GET /metrics", promhttp.Handler())

	root := http.NewServeMux()
	root.Handle("GET /ws", devicews.NewHandler(appCtx, sessions, cfg.WebSocket, log))
	root.Handle("/", commonhttp.BuildBaseHandler(log, api))

	if !cfg.AdminAuthRequired {
		log.Warn("admin routes are served without authentication")
	}

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Registry: registry,
		Sessions: sessions,
		Auth:     auth,
		Commands: commands,
		Handler:  root,
		limiter:  limiter,
		cancel:   cancel,
	}, nil
}

func openStore(ctx, appCtx context.Context, cfg config.Config, log *logger.Logger) (userrepo.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := userrepo.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		db.StartPoolMetrics(appCtx, pool, constants.DBPoolMetricsInterval)
		log.Info("identity store: postgres")
		return userrepo.NewPgRepository(pool), nil
	case config.StoreDriverSQLite:
		repo, err := userrepo.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Infof("identity store: sqlite at %s", cfg.SQLitePath)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// ShutdownHooks closes live device sessions so their teardown reaches the
// store before the listener goes away.
func (a *App) ShutdownHooks() []srv.ShutdownHook {
	return []srv.ShutdownHook{
		func(ctx context.Context) error {
			a.Log.Info("devicehub: closing device sessions")
			return a.Sessions.CloseAll(ctx)
		},
		func(context.Context) error {
			a.limiter.Stop()
			a.cancel()
			return nil
		},
	}
}

// Close releases the store. Call it after the server has stopped.
func (a *App) Close() {
	a.limiter.Stop()
	a.cancel()
	a.Store.Close()
}

func InitializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}
