// Package factory turns provider configuration into a ready Registry.
package factory

import (
	"fmt"

	"github.com/storyverse/ai-gateway/config"
	"github.com/storyverse/ai-gateway/services/providers"
	"github.com/storyverse/ai-gateway/services/providers/anthropic"
	"github.com/storyverse/ai-gateway/services/providers/gemini"
	"github.com/storyverse/ai-gateway/services/providers/ollama"
	"github.com/storyverse/ai-gateway/services/providers/openai"
	"go.uber.org/zap"
)

// Build creates one adapter per configured provider, keeping config order
func Build(cfg config.AIConfig, logger *zap.Logger) (*providers.Registry, error) {
	list := make([]providers.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := New(pc, logger)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	registry, err := providers.NewRegistry(list...)
	if err != nil {
		return nil, fmt.Errorf("building provider registry: %w", err)
	}

	logger.Info("provider registry built",
		zap.Strings("providers", registry.Names()),
		zap.Strings("priority", cfg.Priority),
		zap.Strings("adult_priority", cfg.AdultPriority))

	return registry, nil
}

// New creates a single adapter for pc
func New(pc config.ProviderConfig, logger *zap.Logger) (providers.Provider, error) {
	desc := Descriptor(pc)
	named := logger.With(zap.String("provider", pc.Name))

	switch pc.Kind {
	case config.KindGemini:
		return gemini.NewAdapter(desc, named), nil
	case config.KindClaude:
		return anthropic.NewAdapter(desc, named), nil
	case config.KindOpenAI:
		return openai.NewOpenAIAdapter(desc, named), nil
	case config.KindOllama:
		a, err := ollama.NewAdapter(desc, named)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("provider %s: unknown kind %q", pc.Name, pc.Kind)
	}
}

// Descriptor converts a config entry into the immutable adapter descriptor
func Descriptor(pc config.ProviderConfig) providers.Descriptor {
	return providers.Descriptor{
		Name:        pc.Name,
		Kind:        pc.Kind,
		Endpoint:    pc.BaseURL,
		APIKey:      pc.APIKey,
		Model:       pc.Model,
		CostPer1K:   pc.CostPer1K,
		Timeout:     pc.Timeout,
		Temperature: pc.Temperature,
	}
}
