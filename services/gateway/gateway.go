// Package gateway dispatches chat requests across the provider registry with
// priority ordering, circuit-breaker exclusion and sequential fallback.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

var (
	// ErrAllProvidersExhausted is matched by every *ExhaustedError
	ErrAllProvidersExhausted = errors.New("all AI providers exhausted")

	// ErrUnknownProvider is returned when an explicit provider name is not registered
	ErrUnknownProvider = errors.New("unknown AI provider")
)

// CircuitBreaker is the subset of breaker.Breaker the gateway depends on
type CircuitBreaker interface {
	RecordFailure(ctx context.Context, provider string)
	RecordSuccess(ctx context.Context, provider string)
	IsOpen(ctx context.Context, provider string) bool
}

// Config holds the two priority lists
type Config struct {
	Priority      []string
	AdultPriority []string
}

// Outcome is a successful dispatch
type Outcome struct {
	Text      string
	Provider  string
	Attempted []string
}

// ExhaustedError reports that no provider produced text
type ExhaustedError struct {
	Class       providers.RequestClass
	Attempted   []string
	Skipped     []string
	Unavailable []string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s for %s request (attempted: [%s], circuit open: [%s], unavailable: [%s])",
		ErrAllProvidersExhausted, e.Class,
		strings.Join(e.Attempted, ", "),
		strings.Join(e.Skipped, ", "),
		strings.Join(e.Unavailable, ", "))
}

// Is makes errors.Is(err, ErrAllProvidersExhausted) hold
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Gateway is safe for concurrent use; the breaker store is its only shared state
type Gateway struct {
	registry *providers.Registry
	breaker  CircuitBreaker
	config   Config
	logger   *zap.Logger
}

// New creates a gateway
func New(registry *providers.Registry, breaker CircuitBreaker, cfg Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		breaker:  breaker,
		config:   cfg,
		logger:   logger,
	}
}

// Order returns the candidate providers for a request class.
// Standard requests fall through to every registered provider; adult
// requests never leave the adult list.
func (g *Gateway) Order(class providers.RequestClass) []providers.Provider {
	if class == providers.ClassAdult {
		return g.registry.Resolve(g.config.AdultPriority, false)
	}
	return g.registry.Resolve(g.config.Priority, true)
}

// Chat tries each candidate in order and returns the first success
func (g *Gateway) Chat(ctx context.Context, req providers.ChatRequest) (Outcome, error) {
	if req.Class == "" {
		req.Class = providers.ClassStandard
	}

	// a client disconnect must not abort a provider call halfway
	callCtx := context.WithoutCancel(ctx)
	exhausted := &ExhaustedError{Class: req.Class}

	for _, p := range g.Order(req.Class) {
		name := p.Name()

		if !p.IsAvailable(callCtx) {
			exhausted.Unavailable = append(exhausted.Unavailable, name)
			continue
		}

		if g.breaker.IsOpen(callCtx, name) {
			g.logger.Info("skipping provider with open circuit",
				zap.String("provider", name),
				zap.String("class", string(req.Class)))
			exhausted.Skipped = append(exhausted.Skipped, name)
			continue
		}

		exhausted.Attempted = append(exhausted.Attempted, name)
		result := p.Chat(callCtx, req)
		if result.OK() {
			g.breaker.RecordSuccess(callCtx, name)
			g.logger.Info("provider succeeded",
				zap.String("provider", name),
				zap.String("class", string(req.Class)),
				zap.Strings("attempted", exhausted.Attempted))
			return Outcome{Text: result.Text, Provider: name, Attempted: exhausted.Attempted}, nil
		}

		g.breaker.RecordFailure(callCtx, name)
		g.logger.Warn("provider failed, trying next",
			zap.String("provider", name),
			zap.String("class", string(req.Class)),
			zap.String("failure", result.Failure.String()))
	}

	g.logger.Error("all providers exhausted",
		zap.String("class", string(req.Class)),
		zap.Strings("attempted", exhausted.Attempted),
		zap.Strings("circuit_open", exhausted.Skipped),
		zap.Strings("unavailable", exhausted.Unavailable))

	return Outcome{}, exhausted
}

// ChatWithProvider sends the request to one named provider, ignoring the
// circuit state and leaving it untouched.
func (g *Gateway) ChatWithProvider(ctx context.Context, name string, req providers.ChatRequest) (Outcome, error) {
	if req.Class == "" {
		req.Class = providers.ClassStandard
	}

	p, err := g.registry.Get(name)
	if err != nil {
		g.logger.Error("explicit provider is not configured", zap.String("provider", name))
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	callCtx := context.WithoutCancel(ctx)
	if !p.IsAvailable(callCtx) {
		return Outcome{}, &ExhaustedError{Class: req.Class, Unavailable: []string{name}}
	}

	attempted := []string{name}
	result := p.Chat(callCtx, req)
	if !result.OK() {
		g.logger.Warn("explicit provider failed",
			zap.String("provider", name),
			zap.String("failure", result.Failure.String()))
		return Outcome{}, &ExhaustedError{Class: req.Class, Attempted: attempted}
	}

	return Outcome{Text: result.Text, Provider: name, Attempted: attempted}, nil
}
