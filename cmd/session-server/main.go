// cmd/session-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"session-sentinel/internal/audit"
	"session-sentinel/internal/auth"
	"session-sentinel/internal/common/config"
	"session-sentinel/internal/common/database"
	"session-sentinel/internal/common/errors"
	"session-sentinel/internal/common/logger"
	"session-sentinel/internal/common/observability"
	"session-sentinel/internal/server"
	"session-sentinel/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting session server",
		zap.String("store", cfg.Session.Store),
		zap.String("address", cfg.Server.Address),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Session policy: configured defaults, optionally overridden by a
	// validated policy document ---
	policy := session.Policy{
		InactivityTimeout: cfg.Session.InactivityTimeout(),
		WarningThreshold:  cfg.Session.WarningThreshold(),
	}
	if cfg.Session.PolicyFile != "" {
		policy, err = session.LoadPolicyFile(cfg.Session.PolicyFile)
		if err != nil {
			zapLog.Fatal("policy file rejected", zap.Error(err))
		}
		zapLog.Info("policy loaded from file",
			zap.String("file", cfg.Session.PolicyFile),
			zap.Duration("inactivityTimeout", policy.InactivityTimeout),
			zap.Duration("warningThreshold", policy.WarningThreshold),
		)
	}
	if err := policy.Validate(); err != nil {
		zapLog.Fatal("invalid session policy", zap.Error(err))
	}

	clock := session.SystemClock{}

	// --- Session store backend with retry ---
	var store session.Store
	switch cfg.Session.Store {
	case "memory":
		store = session.NewMemoryStore()
		zapLog.Info("using in-memory session store")

	case "redis":
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb.Client, policy)
		zapLog.Info("Redis connected successfully")

	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		pgStore := session.NewPostgresStore(pg.DB)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		store = pgStore
		zapLog.Info("PostgreSQL connected successfully")

	default:
		zapLog.Fatal("unknown session store", zap.String("store", cfg.Session.Store))
	}

	// --- Audit sink: Elasticsearch when configured, structured log otherwise ---
	var sink audit.Sink = audit.NewLoggerSink(log)
	if cfg.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		sink = audit.NewElasticsearchSink(esClient, cfg.Audit.Index)
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Audit.Index))
	}

	recorder := audit.NewRecorder(sink, cfg.Audit.BufferSize, log)
	defer recorder.Close()

	// --- Authenticator ---
	authenticator, err := auth.FromConfig(cfg.Auth, log)
	if err != nil {
		zapLog.Fatal("authenticator setup failed", zap.Error(err))
	}

	// --- Background sweeper ---
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := session.NewSweeper(store, policy, clock, cfg.Session.SweepInterval(), log)
	go sweeper.Run(sweepCtx)

	// --- HTTP surface ---
	errs := errors.NewErrorHandler(log)
	cookies := server.NewCookieManager(cfg.Session.CookieSecure)
	handlers := server.NewHandlers(
		store, cfg.Session.Store, policy, clock,
		authenticator, cookies, recorder, errs, log,
		cfg.Client.PollIntervalMS,
	)
	interceptor := server.NewInterceptor(
		store, cfg.Session.Store, policy, clock,
		cookies, recorder, errs, log,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.NewRouter(handlers, interceptor, obs),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLog.Info("shutting down", zap.String("signal", sig.String()))

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown incomplete", zap.Error(err))
	}

	zapLog.Info("stopped")
}
