// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayush/estate-marketplace/internal/apierror"
	"github.com/ayush/estate-marketplace/internal/auth"
	"github.com/ayush/estate-marketplace/internal/listing"
	"github.com/ayush/estate-marketplace/internal/logging"
	"github.com/ayush/estate-marketplace/internal/metrics"
	"github.com/ayush/estate-marketplace/internal/middleware"
	"github.com/ayush/estate-marketplace/internal/user"
)

// Options configures the router.
type Options struct {
	Tokens      middleware.TokenValidator
	CookieName  string
	CORSOrigins []string
	// AuthRateLimit requests per AuthRateWindow are allowed per client IP on
	// /api/auth. Zero disables the limit.
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// Handlers groups the route handlers.
type Handlers struct {
	Auth    *auth.Handler
	Listing *listing.Handler
	User    *user.Handler
}

// NewRouter wires middleware and routes.
func NewRouter(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(metrics.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", logging.RequestIDHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, r, apierror.NotFound("Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, r, apierror.New(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		apierror.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	requireAuth := middleware.RequireAuth(opts.Tokens, opts.CookieName)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if opts.AuthRateLimit > 0 {
				r.Use(httprate.Limit(opts.AuthRateLimit, opts.AuthRateWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						apierror.Write(w, r, apierror.New(http.StatusTooManyRequests, "Too many requests, please try again later"))
					}),
				))
			}
			r.Post("/signup", h.Auth.Register)
			r.Post("/signin", h.Auth.Login)
			r.Post("/federated", h.Auth.Federated)
			r.Post("/signout", h.Auth.Logout)
			r.With(requireAuth).Get("/me", h.Auth.Me)
		})

		r.Route("/listing", func(r chi.Router) {
			r.With(requireAuth).Post("/", h.Listing.Create)
			r.With(requireAuth).Post("/images", h.Listing.UploadImages)
			r.Get("/{id}", h.Listing.Get)
			r.With(requireAuth).Put("/{id}", h.Listing.Update)
			r.With(requireAuth).Delete("/{id}", h.Listing.Delete)
			r.Post("/{id}/views", h.Listing.RecordView)
		})
		r.Get("/listings", h.Listing.Search)
		r.Get("/images/*", h.Listing.GetImage)

		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/{id}", h.User.Get)
			r.Put("/{id}", h.User.Update)
			r.Delete("/{id}", h.User.Delete)
			r.Get("/{id}/listings", h.User.Listings)
		})
	})

	return r
}
