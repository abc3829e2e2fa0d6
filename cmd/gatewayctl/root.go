package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/storyverse/ai-gateway/config"
	"github.com/storyverse/ai-gateway/internal/observability"
	"github.com/storyverse/ai-gateway/services/breaker"
	"github.com/storyverse/ai-gateway/services/gateway"
	"github.com/storyverse/ai-gateway/services/providers"
	"github.com/storyverse/ai-gateway/services/providers/factory"
	"go.uber.org/zap"
)

// Function variables for testability
var (
	loadConfig = func(ctx context.Context) (*config.Config, error) {
		cfg, err := config.Load(ctx)
		if err != nil {
			return nil, err
		}
		if err := cfg.ValidateGateway(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}
	buildRegistry = factory.Build
	ioOut         io.Writer = os.Stdout
)

// Execute runs the command tree against os.Args
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "gatewayctl",
		Short: "Inspect and exercise the AI provider gateway",
		Long: `gatewayctl loads the gateway configuration (.env, environment and
PROVIDERS_FILE) and talks to the configured AI providers directly.

Examples:
  gatewayctl status
  gatewayctl chat --class adult "Describe a storm at sea"
  gatewayctl ollama pull`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")
	root.SetOut(ioOut)

	rt := &runtime{logLevel: &logLevel}
	root.AddCommand(newStatusCmd(rt), newChatCmd(rt), newOllamaCmd(rt))
	return root
}

// runtime is the gateway stack shared by the subcommands. It is built
// lazily so --help never reads configuration.
type runtime struct {
	logLevel *string

	cfg      *config.Config
	logger   *zap.Logger
	registry *providers.Registry
	gateway  *gateway.Gateway
	closers  []func() error
}

func (rt *runtime) open(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(*rt.logLevel, "console")
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	store, err := rt.breakerStore(ctx, cfg.Breaker)
	if err != nil {
		return err
	}

	b := breaker.New(store, breaker.Options{
		Threshold: cfg.Breaker.Threshold,
		TTL:       cfg.Breaker.TTL,
		KeyPrefix: cfg.Breaker.KeyPrefix,
	}, logger)

	rt.cfg = cfg
	rt.logger = logger
	rt.registry = registry
	rt.gateway = gateway.New(registry, b, gateway.Config{
		Priority:      cfg.AI.Priority,
		AdultPriority: cfg.AI.AdultPriority,
	}, logger)
	return nil
}

// breakerStore shares the server's redis counters when configured, so
// status reflects live circuit state. Otherwise counters last one command.
func (rt *runtime) breakerStore(ctx context.Context, bc config.BreakerConfig) (breaker.TTLStore, error) {
	if bc.Store != "redis" {
		return breaker.NewMemoryStore(), nil
	}

	store := breaker.NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     bc.Redis.Addr,
		Password: bc.Redis.Password,
		DB:       bc.Redis.DB,
	}))
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	rt.closers = append(rt.closers, store.Close)
	return store, nil
}

func (rt *runtime) close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c())
	}
	rt.closers = nil
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
	return errors.Join(errs...)
}

// withRuntime opens the stack for one RunE and closes it afterwards
func (rt *runtime) withRuntime(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := rt.open(cmd.Context()); err != nil {
			return err
		}
		defer func() {
			if cerr := rt.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}
