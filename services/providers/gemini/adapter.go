package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-1.5-flash"
	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.7
)

// Adapter implements providers.Provider for the Gemini generateContent API
type Adapter struct {
	desc       providers.Descriptor
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates a Gemini adapter
func NewAdapter(desc providers.Descriptor, logger *zap.Logger) *Adapter {
	if desc.Name == "" {
		desc.Name = "gemini"
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
	return &Adapter{
		desc:       desc,
		httpClient: &http.Client{Timeout: desc.Timeout},
		logger:     logger,
	}
}

func (a *Adapter) Name() string                         { return a.desc.Name }
func (a *Adapter) IsAvailable(ctx context.Context) bool { return a.desc.HasCredential() }
func (a *Adapter) CostPer1KTokens() float64             { return a.desc.CostPer1K }

// Chat calls models/{model}:generateContent. The key travels in the
// x-goog-api-key header so it never ends up in a request URL.
func (a *Adapter) Chat(ctx context.Context, req providers.ChatRequest) providers.ChatResult {
	body := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: req.SystemPrompt}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: req.UserMessage}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: req.TokenBound(),
			Temperature:     a.desc.Temperature,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(a.desc.Endpoint, "/"), url.PathEscape(a.desc.Model))
	headers := map[string]string{"x-goog-api-key": a.desc.APIKey}

	var resp generateResponse
	failure := providers.PostJSON(ctx, a.httpClient, endpoint, headers, body, &resp)
	if failure != nil {
		a.logger.Warn("gemini API error",
			zap.String("provider", a.desc.Name),
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.StatusCode),
			zap.String("message", failure.Message))
		return providers.ChatResult{Failure: failure}
	}

	text := ""
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	return providers.Result(nil, text)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}
