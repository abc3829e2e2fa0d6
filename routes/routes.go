package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/storyverse/ai-gateway/app"
	"github.com/storyverse/ai-gateway/handlers"
	"github.com/storyverse/ai-gateway/middleware"
	"github.com/storyverse/ai-gateway/utils"
)

// statusTimeout bounds the public diagnostic routes. Generation routes are
// bounded by the provider timeouts instead.
const statusTimeout = 15 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	health := handlers.NewHealthHandler(db, deps.Registry.Len(), deps.Logger)
	ai := handlers.NewAIHandler(deps.StoryService, deps.Gateway, deps.Images, deps.Logger)

	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// Generated illustrations
	fs := http.StripPrefix("/storage/", http.FileServer(http.Dir(deps.ImageStore.Dir())))
	r.Handle("/storage/*", fs)

	r.Route("/api/v1", func(r chi.Router) {
		// Public diagnostics
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(statusTimeout))
			r.Get("/ai/status", ai.HandleStatus)
			r.Get("/ai/adult-status", ai.HandleAdultStatus)
			r.Get("/ai/image-status", ai.HandleImageStatus)
		})

		// Story AI tools (author only, throttled per user)
		r.Route("/stories/{storyID}/ai", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(middleware.RateLimit(deps.RateLimiter, deps.Logger))
			r.Post("/continue", ai.HandleContinue)
			r.Post("/suggestions", ai.HandleSuggestions)
			r.Post("/improve", ai.HandleImprove)
			r.Post("/title", ai.HandleTitle)
			r.Post("/description", ai.HandleDescription)
			r.Post("/adult/continue", ai.HandleContinueAdult)
			r.Post("/illustrate", ai.HandleIllustrate)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
