package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "http://ollama:11434"
	defaultModel       = "mistral"
	defaultTimeout     = 120 * time.Second
	defaultTemperature = 0.8
	probeTimeout       = 5 * time.Second
	pullTimeout        = 10 * time.Minute
)

// Adapter implements providers.Provider and providers.ServiceProber for a
// local Ollama daemon. It is the default backend for adult requests.
type Adapter struct {
	desc   providers.Descriptor
	client *api.Client
	probe  *api.Client
	puller *api.Client
	logger *zap.Logger
}

// NewAdapter creates an adapter talking to desc.Endpoint
func NewAdapter(desc providers.Descriptor, logger *zap.Logger) (*Adapter, error) {
	if desc.Name == "" {
		desc.Name = "ollama"
	}
	if desc.Endpoint == "" {
		desc.Endpoint = defaultBaseURL
	}
	if desc.Model == "" {
		desc.Model = defaultModel
	}
	if desc.Timeout == 0 {
		desc.Timeout = defaultTimeout
	}
	if desc.Temperature == 0 {
		desc.Temperature = defaultTemperature
	}

	base, err := url.Parse(desc.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama host URL: %w", err)
	}

	return &Adapter{
		desc:   desc,
		client: api.NewClient(base, &http.Client{Timeout: desc.Timeout}),
		probe:  api.NewClient(base, &http.Client{Timeout: probeTimeout}),
		puller: api.NewClient(base, &http.Client{Timeout: pullTimeout}),
		logger: logger,
	}, nil
}

func (a *Adapter) Name() string             { return a.desc.Name }
func (a *Adapter) CostPer1KTokens() float64 { return a.desc.CostPer1K }

// Model returns the configured model name
func (a *Adapter) Model() string { return a.desc.Model }

// IsAvailable is true when the daemon answers and lists a model whose name
// starts with the configured one ("mistral" matches "mistral:latest").
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	models, err := a.AvailableModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if strings.HasPrefix(m, a.desc.Model) {
			return true
		}
	}
	a.logger.Info("ollama running but model not found",
		zap.String("provider", a.desc.Name),
		zap.String("model", a.desc.Model),
		zap.Strings("available", models))
	return false
}

// IsServiceRunning reports whether the daemon answers at all
func (a *Adapter) IsServiceRunning(ctx context.Context) bool {
	_, err := a.probe.List(ctx)
	return err == nil
}

// AvailableModels lists the models pulled into the daemon
func (a *Adapter) AvailableModels(ctx context.Context) ([]string, error) {
	resp, err := a.probe.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot reach ollama: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// PullModel downloads the configured model. progress may be nil.
func (a *Adapter) PullModel(ctx context.Context, progress func(status string, completed, total int64)) error {
	err := a.puller.Pull(ctx, &api.PullRequest{Model: a.desc.Model}, func(p api.ProgressResponse) error {
		if progress != nil {
			progress(p.Status, p.Completed, p.Total)
		}
		return nil
	})
	if err != nil {
		a.logger.Error("failed to pull ollama model",
			zap.String("model", a.desc.Model),
			zap.Error(err))
		return fmt.Errorf("pull %s: %w", a.desc.Model, err)
	}
	return nil
}

// Chat sends one non-streaming /api/chat request
func (a *Adapter) Chat(ctx context.Context, req providers.ChatRequest) providers.ChatResult {
	stream := false
	chatReq := &api.ChatRequest{
		Model: a.desc.Model,
		Messages: []api.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage},
		},
		Stream: &stream,
		Options: map[string]any{
			"num_predict": req.TokenBound(),
			"temperature": a.desc.Temperature,
		},
	}

	var final api.ChatResponse
	err := a.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		result := classify(err)
		a.logger.Warn("ollama API error",
			zap.String("provider", a.desc.Name),
			zap.String("kind", string(result.Failure.Kind)),
			zap.Int("status", result.Failure.StatusCode),
			zap.Error(err))
		return result
	}

	return providers.Result(nil, final.Message.Content)
}

// classify separates transport failures from daemon-side rejections
func classify(err error) providers.ChatResult {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return providers.Rejected(statusErr.StatusCode, statusErr.Error())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return providers.Unreachable(err)
	}
	return providers.Rejected(0, err.Error())
}
