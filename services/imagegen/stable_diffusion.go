// Package imagegen generates story illustrations with a Stable Diffusion WebUI backend.
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "http://stable-diffusion:7860"
	DefaultTimeout        = 180 * time.Second
	DefaultSize           = 512
	DefaultNegativePrompt = "low quality, blurry, distorted, deformed, ugly, bad anatomy"

	probeTimeout = 5 * time.Second
	listTimeout  = 10 * time.Second
	steps        = 30
	cfgScale     = 7.5
	samplerName  = "Euler a"
)

// Config holds backend settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Request describes one txt2img call. Prompt already carries any style prefix.
type Request struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
}

// Image is a stored generation result
type Image struct {
	URL  string
	Path string
}

// Result is either an Image or a backend failure
type Result struct {
	Image   *Image
	Failure *providers.Failure
}

// OK reports whether an image was produced
func (r Result) OK() bool {
	return r.Failure == nil && r.Image != nil
}

// StableDiffusion talks to the AUTOMATIC1111 /sdapi/v1 API
type StableDiffusion struct {
	baseURL string
	client  *http.Client
	probe   *http.Client
	lister  *http.Client
	store   ImageStore
	logger  *zap.Logger
}

// New creates a Stable Diffusion client saving images to store
func New(cfg Config, store ImageStore, logger *zap.Logger) *StableDiffusion {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &StableDiffusion{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		probe:   &http.Client{Timeout: probeTimeout},
		lister:  &http.Client{Timeout: listTimeout},
		store:   store,
		logger:  logger,
	}
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	SamplerName    string  `json:"sampler_name"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Generate renders one image. Backend problems come back as a Result
// failure; the returned error is reserved for storage problems.
func (s *StableDiffusion) Generate(ctx context.Context, req Request) (Result, error) {
	if !s.IsAvailable(ctx) {
		s.logger.Warn("stable diffusion service is not available")
		return Result{Failure: &providers.Failure{Kind: providers.FailureUnreachable, Message: "stable diffusion not reachable"}}, nil
	}

	if req.NegativePrompt == "" {
		req.NegativePrompt = DefaultNegativePrompt
	}
	if req.Width == 0 {
		req.Width = DefaultSize
	}
	if req.Height == 0 {
		req.Height = DefaultSize
	}

	payload := txt2imgRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          steps,
		CFGScale:       cfgScale,
		SamplerName:    samplerName,
		BatchSize:      1,
		NIter:          1,
	}

	var resp txt2imgResponse
	if failure := providers.PostJSON(ctx, s.client, s.baseURL+"/sdapi/v1/txt2img", nil, payload, &resp); failure != nil {
		s.logger.Warn("stable diffusion API error", zap.String("failure", failure.String()))
		return Result{Failure: failure}, nil
	}

	if len(resp.Images) == 0 || resp.Images[0] == "" {
		s.logger.Warn("stable diffusion returned no images")
		return Result{Failure: &providers.Failure{Kind: providers.FailureRejected, StatusCode: http.StatusOK, Message: "no images in response"}}, nil
	}

	data, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return Result{Failure: &providers.Failure{Kind: providers.FailureRejected, StatusCode: http.StatusOK, Message: fmt.Sprintf("decode image: %v", err)}}, nil
	}

	path := "illustrations/" + uuid.New().String() + ".png"
	url, err := s.store.Save(ctx, path, data)
	if err != nil {
		return Result{}, fmt.Errorf("save illustration: %w", err)
	}

	s.logger.Info("illustration generated", zap.String("path", path), zap.Int("bytes", len(data)))
	return Result{Image: &Image{URL: url, Path: path}}, nil
}

// Discard removes a stored image that will not be referenced
func (s *StableDiffusion) Discard(ctx context.Context, img *Image) error {
	if img == nil || img.Path == "" {
		return nil
	}
	return s.store.Delete(ctx, img.Path)
}

// IsAvailable reports whether the WebUI answers its model listing
func (s *StableDiffusion) IsAvailable(ctx context.Context) bool {
	var models []struct{}
	return providers.GetJSON(ctx, s.probe, s.baseURL+"/sdapi/v1/sd-models", &models) == nil
}

// Models returns checkpoint titles, empty on any failure
func (s *StableDiffusion) Models(ctx context.Context) []string {
	var models []struct {
		Title string `json:"title"`
	}
	if failure := providers.GetJSON(ctx, s.lister, s.baseURL+"/sdapi/v1/sd-models", &models); failure != nil {
		return []string{}
	}
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.Title)
	}
	return out
}

// Samplers returns sampler names, empty on any failure
func (s *StableDiffusion) Samplers(ctx context.Context) []string {
	var samplers []struct {
		Name string `json:"name"`
	}
	if failure := providers.GetJSON(ctx, s.lister, s.baseURL+"/sdapi/v1/samplers", &samplers); failure != nil {
		return []string{}
	}
	out := make([]string, 0, len(samplers))
	for _, sm := range samplers {
		out = append(out, sm.Name)
	}
	return out
}
