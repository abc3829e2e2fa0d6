package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/services/ratelimit"
	"github.com/storyverse/ai-gateway/utils"
	"go.uber.org/zap"
)

// RateLimiter admits or rejects one request for a user
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID, premium bool) ratelimit.Result
}

// RateLimit throttles authenticated users. It must run after RequireAuth.
func RateLimit(limiter RateLimiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := GetUserIDFromContext(ctx)
			if !ok {
				_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
				return
			}

			premium := false
			if claims := GetClaimsFromContext(ctx); claims != nil {
				premium = claims.Premium
			}

			res := limiter.Allow(ctx, userID, premium)
			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			}

			if !res.Allowed {
				retry := res.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				logger.Warn("request throttled",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("user_id", userID.String()),
					zap.Int("retry_after_seconds", retry))
				_ = utils.WriteError(w, http.StatusTooManyRequests,
					"Too many AI requests, try again later",
					map[string]interface{}{"retry_after": retry})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
