package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
	defaultTimeout = 60 * time.Second
)

// OpenAIAdapter implements providers.Provider for the chat completions API
type OpenAIAdapter struct {
	desc       providers.Descriptor
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(desc providers.Descriptor, logger *zap.Logger) *OpenAIAdapter {
	if desc.Name == "" {
		desc.Name = "openai"
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

	return &OpenAIAdapter{
		desc:       desc,
		httpClient: &http.Client{Timeout: desc.Timeout},
		logger:     logger,
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return a.desc.Name
}

// IsAvailable reports whether an API key is configured
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	return a.desc.HasCredential()
}

// CostPer1KTokens returns the configured price
func (a *OpenAIAdapter) CostPer1KTokens() float64 {
	return a.desc.CostPer1K
}

// Chat performs a single chat completion call
func (a *OpenAIAdapter) Chat(ctx context.Context, req providers.ChatRequest) providers.ChatResult {
	body := OpenAIChatRequest{
		Model:     a.desc.Model,
		MaxTokens: req.TokenBound(),
		Messages: []OpenAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage},
		},
	}
	if a.desc.Temperature > 0 {
		t := a.desc.Temperature
		body.Temperature = &t
	}

	var resp OpenAIChatResponse
	failure := providers.PostJSON(ctx, a.httpClient, strings.TrimRight(a.desc.Endpoint, "/")+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + a.desc.APIKey}, body, &resp)
	if failure != nil {
		a.logger.Warn("openai API error",
			zap.String("provider", a.desc.Name),
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.StatusCode),
			zap.String("message", failure.Message))
		return providers.ChatResult{Failure: failure}
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return providers.Result(nil, text)
}

// OpenAIChatRequest is the chat completions request body
type OpenAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

// OpenAIMessage is a chat message
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIChatResponse is the subset of the response the adapter reads
type OpenAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      OpenAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}
