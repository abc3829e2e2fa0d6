package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storyverse/ai-gateway/config"
	"github.com/storyverse/ai-gateway/middleware"
	"github.com/storyverse/ai-gateway/repositories"
	"github.com/storyverse/ai-gateway/repositories/postgres"
	"github.com/storyverse/ai-gateway/services/audit"
	"github.com/storyverse/ai-gateway/services/breaker"
	"github.com/storyverse/ai-gateway/services/gateway"
	"github.com/storyverse/ai-gateway/services/imagegen"
	"github.com/storyverse/ai-gateway/services/prompt"
	"github.com/storyverse/ai-gateway/services/providers"
	"github.com/storyverse/ai-gateway/services/providers/factory"
	"github.com/storyverse/ai-gateway/services/ratelimit"
	"github.com/storyverse/ai-gateway/services/story"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// AI
	Registry     *providers.Registry
	BreakerStore breaker.TTLStore
	Breaker      *breaker.Breaker
	Gateway      *gateway.Gateway
	Images       *imagegen.StableDiffusion
	ImageStore   *imagegen.LocalStore
	Audit        *audit.Service
	StoryService *story.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *ratelimit.Limiter

	stopCleanup chan struct{}
}

// NewDependencies connects to the database and wires every component
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithDB(ctx, cfg, factory.DB(), logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithDB wires every component over an already opened pool
func NewDependenciesWithDB(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		DB:     db,
	}

	if err := deps.initRepositories(ctx); err != nil {
		return nil, err
	}

	if err := deps.initBreaker(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize circuit breaker: %w", err)
	}

	if err := deps.initGateway(); err != nil {
		_ = deps.release()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initImages()
	if err := deps.initServices(); err != nil {
		_ = deps.release()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	deps.initAuth()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories creates the gateway tables and the repositories
func (d *Dependencies) initRepositories(ctx context.Context) error {
	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.RepoFactory = postgres.NewRepositoryFactoryFromDB(d.DB, d.Logger)
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.TransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initBreaker selects the counter store shared by the breaker and the rate
// limiter. The memory store runs a cleanup worker until Close.
func (d *Dependencies) initBreaker(ctx context.Context) error {
	bc := d.Config.Breaker

	switch bc.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     bc.Redis.Addr,
			Password: bc.Redis.Password,
			DB:       bc.Redis.DB,
		})
		store := breaker.NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("redis ping failed: %w", err)
		}
		d.BreakerStore = store
		d.Logger.Info("breaker store: redis", zap.String("addr", bc.Redis.Addr))

	default:
		store := breaker.NewMemoryStore()
		d.stopCleanup = make(chan struct{})
		if bc.CleanupPeriod > 0 {
			go store.StartCleanupWorker(bc.CleanupPeriod, d.stopCleanup)
		}
		d.BreakerStore = store
		d.Logger.Info("breaker store: memory")
	}

	d.Breaker = breaker.New(d.BreakerStore, breaker.Options{
		Threshold: bc.Threshold,
		TTL:       bc.TTL,
		KeyPrefix: bc.KeyPrefix,
	}, d.Logger)

	rl := d.Config.RateLimit
	d.RateLimiter = ratelimit.New(d.BreakerStore, ratelimit.Options{
		FreeLimit:    rl.FreeLimit,
		PremiumLimit: rl.PremiumLimit,
		Window:       rl.Window,
		KeyPrefix:    rl.KeyPrefix,
	}, d.Logger)
	return nil
}

// initGateway builds the provider registry and the dispatcher
func (d *Dependencies) initGateway() error {
	registry, err := factory.Build(d.Config.AI, d.Logger)
	if err != nil {
		return err
	}
	if registry.Len() == 0 {
		d.Logger.Warn("no AI providers configured")
	}

	d.Registry = registry
	d.Gateway = gateway.New(registry, d.Breaker, gateway.Config{
		Priority:      d.Config.AI.Priority,
		AdultPriority: d.Config.AI.AdultPriority,
	}, d.Logger)
	return nil
}

func (d *Dependencies) initImages() {
	ic := d.Config.Images
	d.ImageStore = imagegen.NewLocalStore(ic.StorageDir, ic.PublicURL)
	d.Images = imagegen.New(imagegen.Config{
		BaseURL: ic.BaseURL,
		Timeout: ic.Timeout,
	}, d.ImageStore, d.Logger)
}

// initServices starts the audit writers and builds the story service
func (d *Dependencies) initServices() error {
	ac := d.Config.Audit
	d.Audit = audit.NewService(d.Repos.GenerationLogs, d.Logger, audit.Config{
		BufferSize:        ac.BufferSize,
		WorkerCount:       ac.Workers,
		Retention:         ac.Retention,
		RetentionInterval: time.Hour,
	})
	if err := d.Audit.Start(); err != nil {
		return err
	}

	d.StoryService = story.NewService(
		d.Repos,
		d.TxManager,
		d.Gateway,
		d.Images,
		prompt.NewAssembler(d.Config.Prompt.Language),
		d.Logger,
	).WithRecorder(d.Audit)
	return nil
}

func (d *Dependencies) initAuth() {
	if d.Config.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT_SECRET not set, protected routes will reject every request")
	}
	validator := middleware.NewJWTValidator(d.Config.Auth.JWTSecret, d.Config.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	errs := []error{d.release()}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

// release stops the background workers and the redis client. The database
// pool is left open since its owner may be the caller.
func (d *Dependencies) release() error {
	var errs []error

	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}

	// pending audit entries need the database, so drain before closing it
	if d.Audit != nil {
		timeout := d.Config.Audit.StopTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.Audit = nil
	}

	if closer, ok := d.BreakerStore.(*breaker.RedisStore); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.BreakerStore = nil
	}

	return errors.Join(errs...)
}
