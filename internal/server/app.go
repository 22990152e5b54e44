// Package server wires the webshelf components together and runs the HTTP
// and gRPC listeners until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/webshelf/internal/cryptox"
	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/config"
	"github.com/dmitrijs2005/webshelf/internal/server/httpserver"
	"github.com/dmitrijs2005/webshelf/internal/server/lock"
	"github.com/dmitrijs2005/webshelf/internal/server/metrics"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/webshelf/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/webshelf/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      *redis.Client
	locker     *lock.Locker
	httpServer *httpserver.Server
	grpcServer *gs.GRPCServer
}

// NewApp opens storage, runs migrations, connects the lock store and builds
// both servers. An unreachable Redis is logged and tolerated: locking then
// reports unavailable per call.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logOut, c.LogFormat, level)

	if c.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(c.SecretKey) < config.MinSecretLength {
		logger.Warn(ctx, "jwt secret is shorter than recommended", "min_length", config.MinSecretLength)
	}

	db, rm, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if db != nil {
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
	}

	app := &App{config: c, logger: logger, db: db}

	var store lock.Store
	if c.RedisURL != "" {
		client, err := lock.Connect(ctx, c.RedisURL)
		if client == nil {
			app.close(ctx)
			return nil, err
		}
		if err != nil {
			logger.Warn(ctx, "redis unreachable, locking degraded", "error", err)
		}
		app.redis = client
		store = lock.NewRedisStore(client)
	} else {
		logger.Info(ctx, "redis not configured, distributed locking disabled")
	}

	mtr := metrics.New()
	app.locker = lock.NewLocker(store, lockOptions(c, mtr), logger)

	hasher := cryptox.NewHasher(cryptox.DefaultParams)
	us := services.NewUserService(db, rm, hasher, app.locker, logger)
	as := services.NewAuthService(db, rm, hasher, c, logger, mtr)

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:        as,
		Users:       us,
		Gate:        auth.NewGate([]byte(c.SecretKey), c.PublicPaths),
		Metrics:     mtr,
		Logger:      logger,
		CORSOrigins: c.CORSOrigins,
	})
	app.httpServer = httpserver.NewServer(c.HTTPAddr, router, logger)

	if c.GRPCAddr != "" {
		app.grpcServer = gs.NewGRPCServer(c.GRPCAddr, []byte(c.SecretKey), logger, mtr)
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

type runner interface {
	Run(ctx context.Context) error
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails,
// then stops everything and releases the database and Redis clients.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env)

	app.initSignalHandler(cancelFunc)

	servers := []runner{app.httpServer}
	if app.grpcServer != nil {
		servers = append(servers, app.grpcServer)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	wg.Wait()
	app.close(ctx)
	app.logger.Info(ctx, "App stopped")

	return errors.Join(errs...)
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close error", "error", err)
		}
	}
}

// lockOptions starts from lock.DefaultOptions and applies the configured
// values that are set.
func lockOptions(c *config.Config, mtr *metrics.Metrics) lock.Options {
	opts := lock.DefaultOptions
	if c.LockTTL > 0 {
		opts.TTL = c.LockTTL
	}
	if c.LockMaxAttempts > 0 {
		opts.MaxAttempts = c.LockMaxAttempts
	}
	if c.LockRetryDelay > 0 {
		opts.RetryDelay = c.LockRetryDelay
	}
	opts.Observe = func(o lock.Outcome) { mtr.LockAcquire(o.String()) }
	return opts
}
