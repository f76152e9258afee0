package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"mindsphere-backend/internal/handlers"
	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Profile       *handlers.ProfileHandler
	Content       *handlers.ContentHandler
	Sessions      *handlers.SessionHandler
	Schedule      *handlers.ScheduleHandler
	Reports       *handlers.ReportHandler
	Notifications *handlers.NotificationHandler
	WebSocket     http.HandlerFunc
}

func New(
	jwtAuth *middleware.JWTAuth,
	h Handlers,
	redisClient *redis.Client,
	frontendURL string,
	log *logger.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Observe(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(redisClient, "auth", 10, time.Minute, log)
	// Plan generation calls out to providers, so it gets its own budget.
	generateLimiter := middleware.NewRateLimiter(redisClient, "generate", 5, time.Minute, log)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
		})

		// ──── Profile Routes ────
		r.Route("/profile", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", h.Profile.Get)
			r.Put("/preferences", h.Profile.UpdatePreferences)
		})

		// ──── Content Routes ────
		r.Route("/content", func(r chi.Router) {
			r.Get("/", h.Content.List) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/recommendations", h.Content.Recommendations)
			})
		})

		// ──── Learning Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", h.Sessions.Start)
			r.Post("/end", h.Sessions.End)
			r.Post("/events", h.Sessions.LogEvents)
		})

		// ──── Schedule Routes ────
		r.Route("/schedule", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", h.Schedule.Get)
			r.With(generateLimiter.Middleware).Post("/generate", h.Schedule.Generate)
			r.Post("/{id}/hydrate", h.Schedule.Hydrate)
		})

		// ──── Report Routes ────
		r.Route("/reports", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/latest", h.Reports.Latest)
			r.Post("/generate", h.Reports.Generate)
		})

		// ──── Notification Routes ────
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/vapid-public-key", h.Notifications.VAPIDPublicKey) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/subscribe", h.Notifications.Subscribe)
				r.Delete("/subscribe", h.Notifications.Unsubscribe)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", h.WebSocket)
	})

	return r
}
