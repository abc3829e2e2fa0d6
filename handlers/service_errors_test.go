package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storyverse/ai-gateway/services"
	"github.com/storyverse/ai-gateway/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:            "story not found",
			err:             services.ErrStoryNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "story not found",
		},
		{
			name:            "validation error",
			err:             services.ErrUnknownStyle.WithDetail("style", "cubism"),
			expectedStatus:  http.StatusBadRequest,
			expectedError:   "bad_request",
			expectedMessage: "unknown illustration style",
		},
		{
			name:            "unauthorized error",
			err:             services.ErrTokenExpired,
			expectedStatus:  http.StatusUnauthorized,
			expectedError:   "unauthorized",
			expectedMessage: "authentication token expired",
		},
		{
			name:            "not the author",
			err:             services.ErrNotStoryAuthor,
			expectedStatus:  http.StatusForbidden,
			expectedError:   "forbidden",
			expectedMessage: "only the story author can use AI tools",
		},
		{
			name:            "ai exhausted",
			err:             services.ErrAIUnavailable,
			expectedStatus:  http.StatusServiceUnavailable,
			expectedError:   "service_unavailable",
			expectedMessage: "AI service is temporarily unavailable",
		},
		{
			name:            "adult ai exhausted",
			err:             services.ErrAdultAIUnavailable,
			expectedStatus:  http.StatusServiceUnavailable,
			expectedError:   "service_unavailable",
			expectedMessage: "adult AI service is temporarily unavailable",
		},
		{
			name:            "internal error hides cause",
			err:             services.ErrDatabaseError.Wrap(errors.New("pq: password authentication failed")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
		{
			name:            "unknown error",
			err:             errors.New("boom"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedMessage, response.Message)
		})
	}

	t.Run("details are forwarded", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, services.ErrAdultRatingRequired.WithDetail("rating", "12+"), logger)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "12+", response.Details["rating"])
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, nil, logger)
		assert.Empty(t, w.Body.String())
	})
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("structured validation error", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := &utils.ValidationError{Message: "Validation failed", Fields: map[string]string{"prompt": "prompt is required"}}

		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Equal(t, "prompt is required", response.Details["prompt"])
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("invalid JSON body"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid JSON body")
	})
}
