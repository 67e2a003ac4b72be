// Package main is the entry point for the certificate login server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/certlogin/internal/account"
	"github.com/vyrodovalexey/certlogin/internal/auth"
	"github.com/vyrodovalexey/certlogin/internal/config"
	"github.com/vyrodovalexey/certlogin/internal/identity"
	"github.com/vyrodovalexey/certlogin/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("site_url", cfg.SiteURL),
		zap.Bool("tls_enabled", cfg.TLSEnabled),
		zap.String("client_cert_source", cfg.ClientCertSource),
		zap.Bool("allow_password_fallback", cfg.AllowPasswordFallback),
		zap.Bool("auto_create_user", cfg.AutoCreateUser),
		zap.String("store_backend", cfg.StoreBackend),
	)
	warnCertificateLogin(cfg, logger)

	store, closeStore, err := createStore(cfg, logger)
	if err != nil {
		logger.Error("failed to create account store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close account store", zap.Error(err))
		}
	}()

	if err := seedAccounts(context.Background(), cfg, store, logger); err != nil {
		logger.Error("failed to seed accounts", zap.Error(err))
		return 1
	}

	authenticator := createAuthenticator(cfg, store, logger)

	srv := server.New(cfg, logger, store, authenticator)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Graceful shutdown
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

// createStore opens the configured account store. The returned function
// releases its connections.
func createStore(cfg *config.Config, logger *zap.Logger) (account.Store, func() error, error) {
	var (
		store   account.Store
		closeFn = func() error { return nil }
	)

	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		logger.Info("account store: memory")
		return account.NewMemoryStore(), closeFn, nil
	case config.StoreRedis:
		logger.Info("account store: redis",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
		)
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = account.NewRedisStore(client, cfg.RedisPrefix)
		closeFn = client.Close
	case config.StorePostgres:
		logger.Info("account store: postgres")
		pg, err := account.OpenPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		store = pg
		closeFn = pg.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}

	if cfg.AccountCacheTTL > 0 {
		logger.Info("account cache enabled", zap.Duration("ttl", cfg.AccountCacheTTL))
		store = account.NewCachedStore(store, cfg.AccountCacheTTL)
	}

	return store, closeFn, nil
}

// seedAccounts creates the configured password accounts.
func seedAccounts(ctx context.Context, cfg *config.Config, store account.Store, logger *zap.Logger) error {
	entries, err := account.ParseSeed(cfg.SeedAccounts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	created, err := account.Seed(ctx, store, entries)
	if err != nil {
		return err
	}

	logger.Info("seed accounts applied",
		zap.Int("configured", len(entries)),
		zap.Int("created", created),
	)
	return nil
}

// warnCertificateLogin logs a warning when no client certificate can reach
// the server, so every certificate login would fail.
func warnCertificateLogin(cfg *config.Config, logger *zap.Logger) {
	if cfg.CertificateLoginAvailable() {
		return
	}
	logger.Warn("certificate login is unreachable: enable TLS with client auth or use the header cert source",
		zap.Bool("tls_enabled", cfg.TLSEnabled),
		zap.String("tls_client_auth", cfg.TLSClientAuth),
		zap.String("client_cert_source", cfg.ClientCertSource),
		zap.Bool("allow_password_fallback", cfg.AllowPasswordFallback),
	)
}

// createIdentitySource returns where client certificate subjects are read
// from.
func createIdentitySource(cfg *config.Config) identity.Source {
	if cfg.ClientCertSource == config.CertSourceHeader {
		return identity.NewHeaderSource(cfg.ClientCertCNHeader, cfg.ClientCertDNHeader)
	}
	return identity.NewTLSSource()
}

// createAuthenticator builds the login chain: the client certificate
// first, then the password when the certificate step defers.
func createAuthenticator(cfg *config.Config, store account.Store, logger *zap.Logger) auth.Authenticator {
	provisioner := account.NewProvisioner(store)
	engine := auth.NewEngine(store, provisioner, logger.Named("auth"))

	return auth.NewMultiAuthenticator(logger,
		auth.NewCertificateAuthenticator(engine, createIdentitySource(cfg), cfg),
		auth.NewPasswordAuthenticator(store, logger),
	)
}
