package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/middleware"
	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/services/gateway"
	"github.com/storyverse/ai-gateway/services/providers"
	"github.com/storyverse/ai-gateway/services/story"
	"github.com/storyverse/ai-gateway/utils"
	"go.uber.org/zap"
)

// StoryAIService is the story-level AI tool set
type StoryAIService interface {
	ContinueWriting(ctx context.Context, userID, storyID uuid.UUID, in story.ContinueInput) (string, error)
	ContinueWritingAdult(ctx context.Context, userID, storyID uuid.UUID, in story.ContinueInput) (string, error)
	Suggestions(ctx context.Context, userID, storyID uuid.UUID, chapterID *uuid.UUID) ([]string, error)
	ImproveText(ctx context.Context, userID, storyID uuid.UUID, text, instruction string) (string, error)
	GenerateTitles(ctx context.Context, userID, storyID uuid.UUID) ([]string, error)
	GenerateDescription(ctx context.Context, userID, storyID uuid.UUID) (string, error)
	Illustrate(ctx context.Context, userID, storyID uuid.UUID, in story.IllustrateInput) (*models.Illustration, error)
}

// StatusReporter reports provider health and circuit state
type StatusReporter interface {
	ProvidersStatus(ctx context.Context) []gateway.ProviderStatus
	PrimaryProvider(ctx context.Context, class providers.RequestClass) string
	IsAvailable(ctx context.Context, class providers.RequestClass) bool
	AdultServiceStatus(ctx context.Context) gateway.ServiceStatus
}

// ImageBackend reports image generation health
type ImageBackend interface {
	IsAvailable(ctx context.Context) bool
	Models(ctx context.Context) []string
	Samplers(ctx context.Context) []string
}

// ContinueRequest is the body of continue and adult/continue
type ContinueRequest struct {
	ChapterID string `json:"chapter_id" validate:"omitempty,uuid"`
	Prompt    string `json:"prompt" validate:"max=500"`
}

// SuggestionsRequest is the body of suggestions
type SuggestionsRequest struct {
	ChapterID string `json:"chapter_id" validate:"omitempty,uuid"`
}

// ImproveRequest is the body of improve
type ImproveRequest struct {
	Text        string `json:"text" validate:"required,max=5000"`
	Instruction string `json:"instruction" validate:"required,max=500"`
}

// IllustrateRequest is the body of illustrate
type IllustrateRequest struct {
	Prompt         string `json:"prompt" validate:"required,max=1000"`
	NegativePrompt string `json:"negative_prompt" validate:"max=500"`
	Width          int    `json:"width" validate:"omitempty,min=256,max=1024"`
	Height         int    `json:"height" validate:"omitempty,min=256,max=1024"`
	Style          string `json:"style" validate:"omitempty,oneof=anime realistic fantasy sketch"`
	ChapterID      string `json:"chapter_id" validate:"omitempty,uuid"`
}

// TextResponse carries generated prose
type TextResponse struct {
	Text string `json:"text"`
}

// SuggestionsResponse carries continuation ideas
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// TitlesResponse carries title options
type TitlesResponse struct {
	Titles []string `json:"titles"`
}

// DescriptionResponse carries a story blurb
type DescriptionResponse struct {
	Description string `json:"description"`
}

// ProviderState is one provider entry in AIStatusResponse
type ProviderState struct {
	Available       bool    `json:"available"`
	CircuitOpen     bool    `json:"circuit_open"`
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
}

// AIStatusResponse is the body of GET /ai/status
type AIStatusResponse struct {
	Available       bool                     `json:"available"`
	PrimaryProvider *string                  `json:"primary_provider"`
	Providers       map[string]ProviderState `json:"providers"`
}

// ImageStatusResponse is the body of GET /ai/image-status
type ImageStatusResponse struct {
	Available bool     `json:"available"`
	Models    []string `json:"models"`
	Samplers  []string `json:"samplers"`
}

// AIHandler serves the story AI tools and the diagnostic status routes
type AIHandler struct {
	service StoryAIService
	status  StatusReporter
	images  ImageBackend
	logger  *zap.Logger
}

// NewAIHandler creates a new AIHandler
func NewAIHandler(service StoryAIService, status StatusReporter, images ImageBackend, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		service: service,
		status:  status,
		images:  images,
		logger:  logger,
	}
}

// HandleContinue handles POST /stories/{storyID}/ai/continue
func (h *AIHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	h.handleContinue(w, r, h.service.ContinueWriting)
}

// HandleContinueAdult handles POST /stories/{storyID}/ai/adult/continue
func (h *AIHandler) HandleContinueAdult(w http.ResponseWriter, r *http.Request) {
	h.handleContinue(w, r, h.service.ContinueWritingAdult)
}

type continueFunc func(ctx context.Context, userID, storyID uuid.UUID, in story.ContinueInput) (string, error)

func (h *AIHandler) handleContinue(w http.ResponseWriter, r *http.Request, run continueFunc) {
	userID, storyID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req ContinueRequest
	if !h.decode(w, r, &req) {
		return
	}
	chapterID, err := utils.ParseOptionalUUID(req.ChapterID, "chapter_id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	text, err := run(r.Context(), userID, storyID, story.ContinueInput{ChapterID: chapterID, Prompt: req.Prompt})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, TextResponse{Text: text})
}

// HandleSuggestions handles POST /stories/{storyID}/ai/suggestions
func (h *AIHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req SuggestionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	chapterID, err := utils.ParseOptionalUUID(req.ChapterID, "chapter_id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ideas, err := h.service.Suggestions(r.Context(), userID, storyID, chapterID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, SuggestionsResponse{Suggestions: nonNil(ideas)})
}

// HandleImprove handles POST /stories/{storyID}/ai/improve
func (h *AIHandler) HandleImprove(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req ImproveRequest
	if !h.decode(w, r, &req) {
		return
	}

	text, err := h.service.ImproveText(r.Context(), userID, storyID, req.Text, req.Instruction)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, TextResponse{Text: text})
}

// HandleTitle handles POST /stories/{storyID}/ai/title
func (h *AIHandler) HandleTitle(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.identify(w, r)
	if !ok {
		return
	}

	titles, err := h.service.GenerateTitles(r.Context(), userID, storyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, TitlesResponse{Titles: nonNil(titles)})
}

// HandleDescription handles POST /stories/{storyID}/ai/description
func (h *AIHandler) HandleDescription(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.identify(w, r)
	if !ok {
		return
	}

	description, err := h.service.GenerateDescription(r.Context(), userID, storyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, DescriptionResponse{Description: description})
}

// HandleIllustrate handles POST /stories/{storyID}/ai/illustrate
func (h *AIHandler) HandleIllustrate(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req IllustrateRequest
	if !h.decode(w, r, &req) {
		return
	}
	chapterID, err := utils.ParseOptionalUUID(req.ChapterID, "chapter_id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ill, err := h.service.Illustrate(r.Context(), userID, storyID, story.IllustrateInput{
		ChapterID:      chapterID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Style:          req.Style,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteCreated(w, ill); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleStatus handles GET /ai/status
func (h *AIHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := AIStatusResponse{
		Available: h.status.IsAvailable(ctx, providers.ClassStandard),
		Providers: make(map[string]ProviderState),
	}
	if primary := h.status.PrimaryProvider(ctx, providers.ClassStandard); primary != "" {
		resp.PrimaryProvider = &primary
	}
	for _, p := range h.status.ProvidersStatus(ctx) {
		resp.Providers[p.Name] = ProviderState{
			Available:       p.Available,
			CircuitOpen:     p.CircuitOpen,
			CostPer1KTokens: p.CostPer1KTokens,
		}
	}
	h.write(w, http.StatusOK, resp)
}

// HandleAdultStatus handles GET /ai/adult-status
func (h *AIHandler) HandleAdultStatus(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, h.status.AdultServiceStatus(r.Context()))
}

// HandleImageStatus handles GET /ai/image-status
func (h *AIHandler) HandleImageStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ImageStatusResponse{
		Available: h.images.IsAvailable(ctx),
		Models:    []string{},
		Samplers:  []string{},
	}
	if resp.Available {
		resp.Models = nonNil(h.images.Models(ctx))
		resp.Samplers = nonNil(h.images.Samplers(ctx))
	}
	h.write(w, http.StatusOK, resp)
}

// identify returns the authenticated user and the story from the URL
func (h *AIHandler) identify(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.logger.Error("missing user in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "")
		return uuid.Nil, uuid.Nil, false
	}

	storyID, err := utils.ParseUUID(chi.URLParam(r, "storyID"), "storyID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, storyID, true
}

// decode parses and validates the JSON body
func (h *AIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	return true
}

func (h *AIHandler) write(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
