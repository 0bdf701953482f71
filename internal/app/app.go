// Package app wires the datastores, repositories and resolvers shared by the
// HTTP server and the officectl CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/internal/billing"
	"github.com/lexdesk/officeauth/internal/config"
	"github.com/lexdesk/officeauth/internal/infrastructure/buffer"
	"github.com/lexdesk/officeauth/internal/infrastructure/monitor"
	pgInfra "github.com/lexdesk/officeauth/internal/infrastructure/postgres"
	redisInfra "github.com/lexdesk/officeauth/internal/infrastructure/redis"
	"github.com/lexdesk/officeauth/internal/metrics"
	"github.com/lexdesk/officeauth/internal/services"
	"github.com/lexdesk/officeauth/internal/services/lifecycle"
	"github.com/lexdesk/officeauth/repository/postgres"
	redisRepo "github.com/lexdesk/officeauth/repository/redis"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/office"
	"github.com/lexdesk/officeauth/usecase/payment"
	"github.com/lexdesk/officeauth/usecase/profile"
	"github.com/lexdesk/officeauth/usecase/session"
)

// App holds the long-lived components. Everything that owns a connection or
// a goroutine registers a shutdown hook on the lifecycle manager.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Lifecycle *lifecycle.Manager

	Pool      *pgxpool.Pool
	Redis     *goRedis.Client
	Buffer    *buffer.Store
	Monitor   *monitor.Monitor
	Metrics   *metrics.Recorder
	Processor *services.BufferProcessor

	Directory *directory.Service
	Pipeline  *session.Pipeline
}

// Build connects to Postgres, Redis and the local buffer file and assembles
// the resolution pipeline. Partially built components are released through
// the manager when a later step fails.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Lifecycle: manager}

	if err := pgInfra.RunMigrations(cfg, logger); err != nil {
		return nil, fmt.Errorf("app: migrations: %w", err)
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, cfg.AppName, logger)
	if err != nil {
		return nil, fmt.Errorf("app: postgres: %w", err)
	}
	a.Pool = pool
	manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, logger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis, cfg.AppName, logger)
	if err != nil {
		return nil, fmt.Errorf("app: redis: %w", err)
	}
	a.Redis = redisClient
	manager.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "")
	if err != nil {
		return nil, fmt.Errorf("app: buffer: %w", err)
	}
	a.Buffer = bufferStore
	manager.Register("buffer", func(context.Context) error {
		return bufferStore.Close()
	})

	a.Monitor = monitor.New(monitor.ProbesFor(pool, redisClient, bufferStore), cfg.Buffer.HealthInterval, logger)
	a.Monitor.Start()
	manager.Register("monitor", func(context.Context) error {
		a.Monitor.Stop()
		return nil
	})

	a.Metrics = metrics.New()

	identities := postgres.NewIdentityRepository(pool)
	profiles := postgres.NewProfileRepository(pool)
	offices := postgres.NewOfficeRepository(pool)
	admins := postgres.NewSystemAdminRepository(pool)
	subscriptions := postgres.NewSubscriptionRepository(pool)
	sessions := redisRepo.NewSessionRepository(redisClient, cfg.JWT.RefreshTTL)
	events := redisRepo.NewSessionEventBus(redisClient, cfg.Auth.SessionChannel, logger)

	a.Processor = services.NewBufferProcessor(
		bufferStore,
		a.Monitor,
		profiles,
		a.Metrics,
		logger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	a.Processor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		a.Processor.Stop(ctx)
		return nil
	})
	bridge := services.NewBufferBridge(a.Processor)

	checker, err := billing.NewChecker(cfg.Billing, subscriptions, offices, logger)
	if err != nil {
		return nil, fmt.Errorf("app: billing: %w", err)
	}

	policy := profile.NewStorePolicy(
		profile.NewStaticPolicy(cfg.Auth.SuperAdminEmails...),
		admins,
		cfg.Auth.ProfileTimeout,
		logger,
	)
	profileResolver := profile.New(profiles, policy, bridge, cfg.Auth.ProfileTimeout, logger,
		profile.WithObserver(a.Metrics),
		profile.WithFreshWindow(cfg.Auth.FreshWindow),
	)
	officeResolver := office.New(offices, cfg.Auth.OfficeTimeout, logger)
	gate := payment.New(profiles, checker, cfg.Auth.TrialDays, logger,
		payment.WithTimeout(cfg.Auth.BillingTimeout),
	)
	a.Pipeline = session.NewPipeline(profileResolver, officeResolver, gate, a.Metrics, logger)

	tokens, err := directory.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("app: tokens: %w", err)
	}
	a.Directory = directory.New(identities, sessions, events, tokens, logger,
		directory.WithRefreshTTL(cfg.JWT.RefreshTTL),
		directory.WithLegacyKeys(cfg.Auth.LegacyCacheKeys),
	)

	return a, nil
}

// NewResolver returns a stateful session resolver for one client.
func (a *App) NewResolver(opts ...session.Option) *session.Resolver {
	opts = append([]session.Option{
		session.WithLoginObserver(a.Metrics),
		session.WithSessionTimeout(a.Config.Auth.SessionTimeout),
	}, opts...)
	return session.NewResolver(a.Directory, a.Pipeline, a.Logger, opts...)
}
