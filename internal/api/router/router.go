// Package router wires the concierge API's routes and middleware.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/edallison777/vitracka-sub003/internal/http/handlers"
	httpmiddleware "github.com/edallison777/vitracka-sub003/internal/http/middleware"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ConciergeHandler   *handlers.ConciergeHandler
	AdminAuditHandler  *handlers.AdminAuditHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// MessageRateLimit caps concierge turns per second per IP; zero disables
	// rate limiting.
	MessageRateLimit float64
	MessageRateBurst int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ConciergeHandler != nil {
		r.Route("/concierge", func(concierge chi.Router) {
			if cfg.MessageRateLimit > 0 {
				burst := cfg.MessageRateBurst
				if burst <= 0 {
					burst = 5
				}
				limiter := httpmiddleware.NewRateLimiter(cfg.MessageRateLimit, burst)
				concierge.Use(limiter.Middleware)
			}
			concierge.Post("/message", cfg.ConciergeHandler.HandleMessage)
			concierge.Post("/session/{sessionID}/clear", cfg.ConciergeHandler.ClearSession)
		})
	}

	if cfg.AdminAuditHandler != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin/audit", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/", cfg.AdminAuditHandler.ListEntries)
			admin.Get("/review", cfg.AdminAuditHandler.PendingReview)
			admin.Post("/review", cfg.AdminAuditHandler.MarkReviewed)
		})
	}

	return r
}
