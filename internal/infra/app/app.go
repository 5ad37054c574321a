// Package app wires configuration, infrastructure, and services into a
// runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/infra/config"
	"github.com/benefitsdesk/enrollment-core/internal/infra/database"
	kafkainfra "github.com/benefitsdesk/enrollment-core/internal/infra/kafka"
	"github.com/benefitsdesk/enrollment-core/internal/infra/logger"
	"github.com/benefitsdesk/enrollment-core/internal/infra/security"
	"github.com/benefitsdesk/enrollment-core/internal/infra/telemetry"
	postgresrepo "github.com/benefitsdesk/enrollment-core/internal/repository/postgres"
	"github.com/benefitsdesk/enrollment-core/internal/usecase"
)

// Application owns the wired services and the process-level resources they
// depend on.
type Application struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	pool      *pgxpool.Pool
	publisher port.EventPublisher
	metrics   *http.Server

	Enrollments   *usecase.EnrollmentService
	Auth          *usecase.AuthService
	PasswordReset *usecase.PasswordResetService
}

// New wires the full application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var publisher port.EventPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			publisher = kafkainfra.NewStubPublisher(log)
		} else {
			publisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		publisher = kafkainfra.NewStubPublisher(log)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(registry)

	codec, err := security.NewTokenCodec(cfg.JWT.Secret, cfg.App.Name, cfg.JWT.AccessTokenTTL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	limiter := security.NewLoginAttemptLimiter(cfg.Login.MaxAttempts, cfg.Login.LockDuration)
	events := usecase.NewSecurityEvents(repos.SecurityEvents, publisher, metrics, log)

	app := &Application{
		cfg:       cfg,
		logger:    log,
		pool:      pool,
		publisher: publisher,
		Enrollments: usecase.NewEnrollmentService(
			repos.Users,
			repos.Profiles,
			repos.Dependents,
			repos.Plans,
			repos.Enrollments,
			metrics,
			log,
		),
		Auth: usecase.NewAuthService(
			repos.Users,
			repos.Sessions,
			repos.Invites,
			limiter,
			codec,
			events,
			metrics,
			log,
			cfg.JWT.RefreshTokenTTL,
		),
		PasswordReset: usecase.NewPasswordResetService(
			repos.Users,
			repos.Sessions,
			repos.ResetTokens,
			events,
			log,
			cfg.PasswordReset.TokenTTL,
			cfg.App.Production(),
		),
	}

	if cfg.Telemetry.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		app.metrics = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return app, nil
}

// Run serves metrics until the context is cancelled, then releases resources.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	if a.metrics != nil {
		go func() {
			a.logger.Info("metrics listener started", zap.String("addr", a.metrics.Addr))
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.close()
		return fmt.Errorf("metrics listener: %w", err)
	}

	a.close()
	return nil
}

func (a *Application) close() {
	if a.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(shutdownCtx)
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("event publisher close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}
