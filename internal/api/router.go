package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	SubmitHandler   http.HandlerFunc
	PollHandler     http.HandlerFunc
	BatchHandler    http.HandlerFunc
	ListJobsHandler http.HandlerFunc

	ListAlertsHandler  http.HandlerFunc
	UpdateAlertHandler http.HandlerFunc

	TrendsHandler   http.HandlerFunc
	HotspotsHandler http.HandlerFunc
	NearbyHandler   http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Authenticated group. Auth admits anonymous callers; rate limiting keys
	// off the API key prefix or the client address.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// The kind can ride in the path or in the body; both hit one handler.
		r.Post("/api/v1/analyze", orNotImplemented(deps.SubmitHandler))
		r.Post("/api/v1/analyze/{kind}", orNotImplemented(deps.SubmitHandler))
		r.Post("/api/v1/analyze/building-height/batch", orNotImplemented(deps.BatchHandler))
		r.Get("/api/v1/analyze/{jobID}", orNotImplemented(deps.PollHandler))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))

		r.Get("/api/v1/alerts", orNotImplemented(deps.ListAlertsHandler))
		r.Post("/api/v1/alerts/{alertID}/status", orNotImplemented(deps.UpdateAlertHandler))

		r.Get("/api/v1/stats/trends", orNotImplemented(deps.TrendsHandler))
		r.Get("/api/v1/stats/hotspots", orNotImplemented(deps.HotspotsHandler))
		r.Get("/api/v1/stats/nearby", orNotImplemented(deps.NearbyHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
