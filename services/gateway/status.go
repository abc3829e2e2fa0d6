package gateway

import (
	"context"

	"github.com/storyverse/ai-gateway/services/providers"
)

// ProviderStatus is one row of the status report
type ProviderStatus struct {
	Name            string  `json:"name"`
	Available       bool    `json:"available"`
	CircuitOpen     bool    `json:"circuit_open"`
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
}

// ServiceStatus describes a local-daemon pool such as the adult backends
type ServiceStatus struct {
	Available      bool     `json:"available"`
	ServiceRunning bool     `json:"service_running"`
	Models         []string `json:"models"`
}

// ProvidersStatus reports every registered provider in registry order
func (g *Gateway) ProvidersStatus(ctx context.Context) []ProviderStatus {
	all := g.registry.Providers()
	out := make([]ProviderStatus, 0, len(all))
	for _, p := range all {
		out = append(out, ProviderStatus{
			Name:            p.Name(),
			Available:       p.IsAvailable(ctx),
			CircuitOpen:     g.breaker.IsOpen(ctx, p.Name()),
			CostPer1KTokens: p.CostPer1KTokens(),
		})
	}
	return out
}

// PrimaryProvider returns the provider the next request of this class would
// try first, or "" when none is usable.
func (g *Gateway) PrimaryProvider(ctx context.Context, class providers.RequestClass) string {
	for _, p := range g.Order(class) {
		if p.IsAvailable(ctx) && !g.breaker.IsOpen(ctx, p.Name()) {
			return p.Name()
		}
	}
	return ""
}

// IsAvailable reports whether any provider can serve the class right now
func (g *Gateway) IsAvailable(ctx context.Context, class providers.RequestClass) bool {
	return g.PrimaryProvider(ctx, class) != ""
}

// AdultServiceStatus probes the first adult provider that can report daemon
// state. Available follows the adult pool as a whole.
func (g *Gateway) AdultServiceStatus(ctx context.Context) ServiceStatus {
	status := ServiceStatus{
		Available: g.IsAvailable(ctx, providers.ClassAdult),
		Models:    []string{},
	}

	for _, p := range g.Order(providers.ClassAdult) {
		prober, ok := p.(providers.ServiceProber)
		if !ok {
			continue
		}
		status.ServiceRunning = prober.IsServiceRunning(ctx)
		if status.ServiceRunning {
			if models, err := prober.AvailableModels(ctx); err == nil {
				status.Models = models
			}
		}
		break
	}

	return status
}
