package api

import (
	"net/http"
	"time"

	"bengkel/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the REST API is built from.
type Deps struct {
	Identity Identity
	Bookings Bookings
	Policy   Authorizer
	Store    Pinger
	Config   config.APIConfig
	Logger   *zerolog.Logger
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &handlers{
		identity: deps.Identity,
		bookings: deps.Bookings,
		store:    deps.Store,
		logger:   logger,
		now:      time.Now,
	}
	limiter := newRateLimiter(deps.Config.RateLimit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(limiter.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(deps.Identity, logger))
			r.Use(authorize(deps.Policy, logger))

			r.Post("/logout", h.logout)
			r.Post("/change-password", h.changePassword)
			r.Get("/users", h.listUsers)

			// full paths keep the matched pattern complete for authorize
			r.Post("/bookings", h.createBooking)
			r.Get("/bookings", h.allBookings)
			r.Get("/bookings/my-bookings", h.myBookings)
			r.Get("/bookings/stats", h.bookingStats)
			r.Get("/bookings/export", h.exportBookings)
			r.Get("/bookings/{id}", h.getBooking)
			r.Patch("/bookings/{id}", h.updateBooking)
			r.Patch("/bookings/{id}/cancel", h.cancelBooking)
		})
	})

	return r
}
