// Command server runs the sessiond service: the authentication-session and
// cross-request coordination core.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/soleron/sessiond/internal/application"
	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/internal/infrastructure/audit"
	"github.com/soleron/sessiond/internal/infrastructure/monitoring"
	"github.com/soleron/sessiond/internal/infrastructure/persistence/postgres"
	redisconn "github.com/soleron/sessiond/internal/infrastructure/persistence/redis"
	redisstore "github.com/soleron/sessiond/internal/infrastructure/redis"
	"github.com/soleron/sessiond/internal/infrastructure/secrets"
	"github.com/soleron/sessiond/internal/interfaces/http/handlers"
	"github.com/soleron/sessiond/internal/interfaces/http/middleware"
	"github.com/soleron/sessiond/internal/interfaces/http/router"
	"github.com/soleron/sessiond/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	metrics := monitoring.NewMetrics()

	// Shared store. The manager connects lazily, but failing fast at startup
	// beats failing on the first request.
	redisMgr := redisconn.NewConnectionManager(&cfg.Redis, log)
	if _, err := redisMgr.Acquire(ctx); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisMgr.Close() }()

	// Durable store.
	db, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	// Audit trail: GORM system of record, optional Kafka fan-out.
	gormDB, err := gorm.Open(gormpostgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}
	auditSvc, err := audit.NewGormAuditService(gormDB)
	if err != nil {
		return fmt.Errorf("init audit store: %w", err)
	}
	if cfg.Kafka.Enabled {
		producer := audit.NewKafkaProducer(&cfg.Kafka, log)
		defer func() { _ = producer.Close() }()
		auditSvc = audit.NewFanOut(auditSvc, producer)
	}

	// CSRF signing secret, from Vault when configured.
	signingSecret := cfg.CSRF.SigningSecret
	if cfg.CSRF.VaultSecretPath != "" {
		vaultClient, err := secrets.NewVaultClient(&cfg.Vault, log)
		if err != nil {
			return fmt.Errorf("init vault: %w", err)
		}
		signingSecret, err = vaultClient.SigningSecret(ctx, cfg.CSRF.VaultSecretPath)
		if err != nil {
			return fmt.Errorf("load signing secret: %w", err)
		}
	}

	stateStore := redisstore.NewOAuthStateStore(redisMgr, metrics, log)
	sessionRepo := postgres.NewSessionRepository(db, log)
	lifecycle := service.NewSessionLifecycleService(sessionRepo, auditSvc, metrics, &cfg.Session, log)

	csrfGuard := middleware.NewCSRFGuard(signingSecret, cfg.CSRF.CookieName, cfg.Server.Production, auditSvc, metrics, log)
	healthHandler := handlers.NewHealthHandler(redisMgr, db)

	sweeper := application.NewSweeper(lifecycle, stateStore, cfg.Session.SweepInterval, log)
	sweeper.Start()
	defer sweeper.Stop()

	engine := router.New(router.Dependencies{
		Config:    cfg,
		Lifecycle: lifecycle,
		CSRF:      csrfGuard,
		Health:    healthHandler,
		Tracing:   tracing,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "HTTP server listening", logger.Fields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info(context.Background(), "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
