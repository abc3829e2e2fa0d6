package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-sonnet-4-20250514"
	defaultTimeout = 60 * time.Second
	apiVersion     = "2023-06-01"
)

// Adapter implements providers.Provider for the Anthropic Messages API
type Adapter struct {
	desc       providers.Descriptor
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates a Claude adapter
func NewAdapter(desc providers.Descriptor, logger *zap.Logger) *Adapter {
	if desc.Name == "" {
		desc.Name = "claude"
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
	return &Adapter{
		desc:       desc,
		httpClient: &http.Client{Timeout: desc.Timeout},
		logger:     logger,
	}
}

func (a *Adapter) Name() string                         { return a.desc.Name }
func (a *Adapter) IsAvailable(ctx context.Context) bool { return a.desc.HasCredential() }
func (a *Adapter) CostPer1KTokens() float64             { return a.desc.CostPer1K }

// Chat sends one Messages API request. The system prompt travels in the
// top-level "system" field, not as a message.
func (a *Adapter) Chat(ctx context.Context, req providers.ChatRequest) providers.ChatResult {
	body := messagesRequest{
		Model:     a.desc.Model,
		MaxTokens: req.TokenBound(),
		System:    req.SystemPrompt,
		Messages:  []message{{Role: "user", Content: req.UserMessage}},
	}
	if a.desc.Temperature > 0 {
		t := a.desc.Temperature
		body.Temperature = &t
	}

	headers := map[string]string{
		"x-api-key":         a.desc.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	failure := providers.PostJSON(ctx, a.httpClient, strings.TrimRight(a.desc.Endpoint, "/")+"/messages", headers, body, &resp)
	if failure != nil {
		a.logger.Warn("claude API error",
			zap.String("provider", a.desc.Name),
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.StatusCode),
			zap.String("message", failure.Message))
		return providers.ChatResult{Failure: failure}
	}

	text := ""
	if len(resp.Content) > 0 {
		text = resp.Content[0].Text
	}
	return providers.Result(nil, text)
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}
