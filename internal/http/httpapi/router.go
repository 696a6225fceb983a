package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"bloodhero/internal/http/handlers"
	"bloodhero/internal/infra"
	"bloodhero/internal/middleware"
)

// NewRouter builds the route table. Everything under /api except request
// lookup and the auth endpoints is gated on a bearer token.
func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.I18N("en"),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", app.Register)
		r.Post("/auth/login", app.Login)

		r.Route("/profile", func(r chi.Router) {
			r.Use(middleware.AuthJWT(cfg.JWTSecret))
			r.Get("/", app.ProfileGet)
			r.Put("/", app.ProfileUpdate)
		})

		r.Route("/requests", func(r chi.Router) {
			// Public single-request lookup; static routes below win over it.
			r.Get("/{id}", app.RequestGet)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthJWT(cfg.JWTSecret))
				r.Get("/", app.RequestsList)
				r.Get("/me", app.MyRequests)
				r.Get("/history", app.MyRequestHistory)
				r.Get("/nearby", app.RequestsNearby)
				r.Get("/accepted", app.RequestsAccepted)
				r.Get("/directions/{requestId}", app.GetDirections)
				r.Post("/", app.RequestsCreate)
				r.Post("/{id}/accept", app.RequestAccept)
				r.Put("/{id}/respond/{donorId}", app.RequestRespond)
				r.Post("/{requestId}/confirm-donation", app.ConfirmDonation)
				r.Put("/{requestId}/donation-status", app.DonationStatus)
				r.Put("/{id}", app.RequestUpdate)
				r.Delete("/{id}", app.RequestDelete)
			})
		})
	})

	// Proof photos are served straight from disk in development.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	return r
}
