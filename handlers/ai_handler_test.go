package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/middleware"
	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/services"
	"github.com/storyverse/ai-gateway/services/gateway"
	"github.com/storyverse/ai-gateway/services/providers"
	"github.com/storyverse/ai-gateway/services/story"
	"github.com/storyverse/ai-gateway/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStoryAIService is a mock implementation of StoryAIService
type MockStoryAIService struct {
	mock.Mock
}

func (m *MockStoryAIService) ContinueWriting(ctx context.Context, userID, storyID uuid.UUID, in story.ContinueInput) (string, error) {
	args := m.Called(ctx, userID, storyID, in)
	return args.String(0), args.Error(1)
}

func (m *MockStoryAIService) ContinueWritingAdult(ctx context.Context, userID, storyID uuid.UUID, in story.ContinueInput) (string, error) {
	args := m.Called(ctx, userID, storyID, in)
	return args.String(0), args.Error(1)
}

func (m *MockStoryAIService) Suggestions(ctx context.Context, userID, storyID uuid.UUID, chapterID *uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID, storyID, chapterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStoryAIService) ImproveText(ctx context.Context, userID, storyID uuid.UUID, text, instruction string) (string, error) {
	args := m.Called(ctx, userID, storyID, text, instruction)
	return args.String(0), args.Error(1)
}

func (m *MockStoryAIService) GenerateTitles(ctx context.Context, userID, storyID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID, storyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStoryAIService) GenerateDescription(ctx context.Context, userID, storyID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID, storyID)
	return args.String(0), args.Error(1)
}

func (m *MockStoryAIService) Illustrate(ctx context.Context, userID, storyID uuid.UUID, in story.IllustrateInput) (*models.Illustration, error) {
	args := m.Called(ctx, userID, storyID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Illustration), args.Error(1)
}

// MockStatusReporter is a mock implementation of StatusReporter
type MockStatusReporter struct {
	mock.Mock
}

func (m *MockStatusReporter) ProvidersStatus(ctx context.Context) []gateway.ProviderStatus {
	return m.Called(ctx).Get(0).([]gateway.ProviderStatus)
}

func (m *MockStatusReporter) PrimaryProvider(ctx context.Context, class providers.RequestClass) string {
	return m.Called(ctx, class).String(0)
}

func (m *MockStatusReporter) IsAvailable(ctx context.Context, class providers.RequestClass) bool {
	return m.Called(ctx, class).Bool(0)
}

func (m *MockStatusReporter) AdultServiceStatus(ctx context.Context) gateway.ServiceStatus {
	return m.Called(ctx).Get(0).(gateway.ServiceStatus)
}

// MockImageBackend is a mock implementation of ImageBackend
type MockImageBackend struct {
	mock.Mock
}

func (m *MockImageBackend) IsAvailable(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockImageBackend) Models(ctx context.Context) []string {
	return m.Called(ctx).Get(0).([]string)
}

func (m *MockImageBackend) Samplers(ctx context.Context) []string {
	return m.Called(ctx).Get(0).([]string)
}

type aiHarness struct {
	handler *AIHandler
	service *MockStoryAIService
	status  *MockStatusReporter
	images  *MockImageBackend
	userID  uuid.UUID
	storyID uuid.UUID
}

func newAIHarness() aiHarness {
	h := aiHarness{
		service: new(MockStoryAIService),
		status:  new(MockStatusReporter),
		images:  new(MockImageBackend),
		userID:  uuid.New(),
		storyID: uuid.New(),
	}
	h.handler = NewAIHandler(h.service, h.status, h.images, zap.NewNop())
	return h
}

// storyRequest builds an authenticated request with the storyID URL param set
func (h aiHarness) storyRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stories/"+h.storyID.String()+"/ai/x", &buf)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("storyID", h.storyID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithUserID(ctx, h.userID)
	return req.WithContext(ctx)
}

func TestAIHandler_HandleContinue(t *testing.T) {
	t.Run("returns generated text", func(t *testing.T) {
		h := newAIHarness()
		chapterID := uuid.New()
		h.service.On("ContinueWriting", mock.Anything, h.userID, h.storyID, story.ContinueInput{
			ChapterID: &chapterID,
			Prompt:    "make it rain",
		}).Return("Rain fell.", nil)

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, h.storyRequest(t, ContinueRequest{ChapterID: chapterID.String(), Prompt: "make it rain"}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"text":"Rain fell."}`, w.Body.String())
		h.service.AssertExpectations(t)
	})

	t.Run("empty body is allowed", func(t *testing.T) {
		h := newAIHarness()
		h.service.On("ContinueWriting", mock.Anything, h.userID, h.storyID, story.ContinueInput{}).Return("More.", nil)

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, h.storyRequest(t, nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("prompt too long", func(t *testing.T) {
		h := newAIHarness()

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, h.storyRequest(t, ContinueRequest{Prompt: strings.Repeat("a", 501)}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Contains(t, response.Details, "prompt")
		h.service.AssertNotCalled(t, "ContinueWriting", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid chapter id", func(t *testing.T) {
		h := newAIHarness()

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, h.storyRequest(t, ContinueRequest{ChapterID: "seven"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not the author", func(t *testing.T) {
		h := newAIHarness()
		h.service.On("ContinueWriting", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", services.ErrNotStoryAuthor)

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, h.storyRequest(t, nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("providers exhausted", func(t *testing.T) {
		h := newAIHarness()
		h.service.On("ContinueWriting", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", services.ErrAIUnavailable)

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, h.storyRequest(t, nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "AI service is temporarily unavailable")
	})

	t.Run("missing user", func(t *testing.T) {
		h := newAIHarness()
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid story id", func(t *testing.T) {
		h := newAIHarness()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("storyID", "abc")
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		req = req.WithContext(middleware.WithUserID(ctx, h.userID))

		w := httptest.NewRecorder()
		h.handler.HandleContinue(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAIHandler_HandleContinueAdult(t *testing.T) {
	h := newAIHarness()
	h.service.On("ContinueWritingAdult", mock.Anything, h.userID, h.storyID, story.ContinueInput{Prompt: "go"}).
		Return("", services.ErrAdultRatingRequired.WithDetail("rating", "12+"))

	w := httptest.NewRecorder()
	h.handler.HandleContinueAdult(w, h.storyRequest(t, ContinueRequest{Prompt: "go"}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	h.service.AssertNotCalled(t, "ContinueWriting", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAIHandler_HandleSuggestions(t *testing.T) {
	h := newAIHarness()
	h.service.On("Suggestions", mock.Anything, h.userID, h.storyID, (*uuid.UUID)(nil)).
		Return([]string{"1. A storm", "2. A letter"}, nil)

	w := httptest.NewRecorder()
	h.handler.HandleSuggestions(w, h.storyRequest(t, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"suggestions":["1. A storm","2. A letter"]}`, w.Body.String())
}

func TestAIHandler_HandleImprove(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newAIHarness()
		h.service.On("ImproveText", mock.Anything, h.userID, h.storyID, "draft", "tighten").Return("final", nil)

		w := httptest.NewRecorder()
		h.handler.HandleImprove(w, h.storyRequest(t, ImproveRequest{Text: "draft", Instruction: "tighten"}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"text":"final"}`, w.Body.String())
	})

	t.Run("text and instruction are required", func(t *testing.T) {
		h := newAIHarness()

		w := httptest.NewRecorder()
		h.handler.HandleImprove(w, h.storyRequest(t, ImproveRequest{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Contains(t, response.Details, "text")
		assert.Contains(t, response.Details, "instruction")
	})

	t.Run("malformed json", func(t *testing.T) {
		h := newAIHarness()
		req := h.storyRequest(t, nil)
		req.Body = io.NopCloser(strings.NewReader(`{"text":`))

		w := httptest.NewRecorder()
		h.handler.HandleImprove(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAIHandler_HandleTitleAndDescription(t *testing.T) {
	h := newAIHarness()
	h.service.On("GenerateTitles", mock.Anything, h.userID, h.storyID).Return(nil, nil)
	h.service.On("GenerateDescription", mock.Anything, h.userID, h.storyID).Return("A short blurb.", nil)

	w := httptest.NewRecorder()
	h.handler.HandleTitle(w, h.storyRequest(t, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"titles":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	h.handler.HandleDescription(w, h.storyRequest(t, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"description":"A short blurb."}`, w.Body.String())
}

func TestAIHandler_HandleIllustrate(t *testing.T) {
	t.Run("creates illustration", func(t *testing.T) {
		h := newAIHarness()
		ill := models.NewIllustration(h.storyID, nil, "/storage/illustrations/a.png", "a fox", 1)
		h.service.On("Illustrate", mock.Anything, h.userID, h.storyID, story.IllustrateInput{
			Prompt: "a fox",
			Width:  768,
			Style:  "sketch",
		}).Return(ill, nil)

		w := httptest.NewRecorder()
		h.handler.HandleIllustrate(w, h.storyRequest(t, IllustrateRequest{Prompt: "a fox", Width: 768, Style: "sketch"}))

		assert.Equal(t, http.StatusCreated, w.Code)
		var got models.Illustration
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, ill.ID, got.ID)
		assert.Equal(t, "/storage/illustrations/a.png", got.ImageURL)
	})

	invalid := []struct {
		name  string
		body  IllustrateRequest
		field string
	}{
		{"missing prompt", IllustrateRequest{}, "prompt"},
		{"width too small", IllustrateRequest{Prompt: "x", Width: 128}, "width"},
		{"height too large", IllustrateRequest{Prompt: "x", Height: 2048}, "height"},
		{"unknown style", IllustrateRequest{Prompt: "x", Style: "cubism"}, "style"},
		{"negative prompt too long", IllustrateRequest{Prompt: "x", NegativePrompt: strings.Repeat("n", 501)}, "negative_prompt"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			h := newAIHarness()

			w := httptest.NewRecorder()
			h.handler.HandleIllustrate(w, h.storyRequest(t, tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Contains(t, response.Details, tt.field)
		})
	}

	t.Run("backend unavailable", func(t *testing.T) {
		h := newAIHarness()
		h.service.On("Illustrate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.ErrImageUnavailable)

		w := httptest.NewRecorder()
		h.handler.HandleIllustrate(w, h.storyRequest(t, IllustrateRequest{Prompt: "x"}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAIHandler_HandleStatus(t *testing.T) {
	t.Run("reports providers keyed by name", func(t *testing.T) {
		h := newAIHarness()
		h.status.On("IsAvailable", mock.Anything, providers.ClassStandard).Return(true)
		h.status.On("PrimaryProvider", mock.Anything, providers.ClassStandard).Return("claude")
		h.status.On("ProvidersStatus", mock.Anything).Return([]gateway.ProviderStatus{
			{Name: "gemini", Available: true, CircuitOpen: true, CostPer1KTokens: 0.00025},
			{Name: "claude", Available: true, CostPer1KTokens: 0.003},
		})

		w := httptest.NewRecorder()
		h.handler.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"available": true,
			"primary_provider": "claude",
			"providers": {
				"gemini": {"available": true, "circuit_open": true, "cost_per_1k_tokens": 0.00025},
				"claude": {"available": true, "circuit_open": false, "cost_per_1k_tokens": 0.003}
			}
		}`, w.Body.String())
	})

	t.Run("no primary provider is null", func(t *testing.T) {
		h := newAIHarness()
		h.status.On("IsAvailable", mock.Anything, providers.ClassStandard).Return(false)
		h.status.On("PrimaryProvider", mock.Anything, providers.ClassStandard).Return("")
		h.status.On("ProvidersStatus", mock.Anything).Return([]gateway.ProviderStatus{})

		w := httptest.NewRecorder()
		h.handler.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/status", nil))

		assert.JSONEq(t, `{"available": false, "primary_provider": null, "providers": {}}`, w.Body.String())
	})
}

func TestAIHandler_HandleAdultStatus(t *testing.T) {
	h := newAIHarness()
	h.status.On("AdultServiceStatus", mock.Anything).Return(gateway.ServiceStatus{
		Available:      false,
		ServiceRunning: true,
		Models:         []string{"llama3:latest"},
	})

	w := httptest.NewRecorder()
	h.handler.HandleAdultStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/adult-status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"available": false, "service_running": true, "models": ["llama3:latest"]}`, w.Body.String())
}

func TestAIHandler_HandleImageStatus(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		h := newAIHarness()
		h.images.On("IsAvailable", mock.Anything).Return(true)
		h.images.On("Models", mock.Anything).Return([]string{"sd15"})
		h.images.On("Samplers", mock.Anything).Return([]string{"Euler a"})

		w := httptest.NewRecorder()
		h.handler.HandleImageStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/image-status", nil))

		assert.JSONEq(t, `{"available": true, "models": ["sd15"], "samplers": ["Euler a"]}`, w.Body.String())
	})

	t.Run("unavailable skips listing", func(t *testing.T) {
		h := newAIHarness()
		h.images.On("IsAvailable", mock.Anything).Return(false)

		w := httptest.NewRecorder()
		h.handler.HandleImageStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/image-status", nil))

		assert.JSONEq(t, `{"available": false, "models": [], "samplers": []}`, w.Body.String())
		h.images.AssertNotCalled(t, "Models", mock.Anything)
	})
}
