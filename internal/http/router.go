package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsProvider exposes request instrumentation and the scrape endpoint.
type MetricsProvider interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

type RouterConfig struct {
	Auth      *AuthHandler
	Venues    *VenueHandler
	Meals     *MealHandler
	Employees *EmployeeHandler
	Admins    *AdminHandler
	Reports   *ReportHandler

	Sessions SessionValidator
	Metrics  MetricsProvider
	// Health reports storage reachability for /healthz. Nil means always healthy.
	Health func(ctx context.Context) error

	LoginRateLimit int
	MealRateLimit  int
	SSLRedirect    bool
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	resp := newResponder(logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(SecureHeaders(logger, cfg.SSLRedirect))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		resp.writeJSON(req.Context(), w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: statusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		resp.writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				resp.writeError(req.Context(), w, http.StatusServiceUnavailable, err)
				return
			}
		}
		resp.writeJSON(req.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	if cfg.Auth != nil {
		r.With(rateLimitOrNoop(cfg.LoginRateLimit, logger)).Post("/login", cfg.Auth.Login)
		r.Post("/logout", cfg.Auth.Logout)
	}

	r.Group(func(r chi.Router) {
		if cfg.Sessions != nil {
			r.Use(RequireSession(cfg.Sessions, logger))
		}

		if cfg.Auth != nil {
			r.Post("/sessions/current/reauthenticate", cfg.Auth.Reauthenticate)
		}

		if cfg.Venues != nil || cfg.Meals != nil {
			r.Route("/venues", func(r chi.Router) {
				if cfg.Venues != nil {
					r.Get("/", cfg.Venues.List)
					r.Post("/", cfg.Venues.Create)
					r.Put("/{name}", cfg.Venues.Update)
					r.Delete("/{name}", cfg.Venues.Delete)
				}
				if cfg.Meals != nil {
					r.With(rateLimitOrNoop(cfg.MealRateLimit, logger)).Post("/{name}/meals", cfg.Meals.Register)
				}
			})
		}

		if cfg.Employees != nil {
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", cfg.Employees.List)
				r.Post("/", cfg.Employees.Create)
				r.Get("/{id}", cfg.Employees.Get)
				r.Put("/{id}", cfg.Employees.Update)
				r.Delete("/{id}", cfg.Employees.Delete)
				r.Put("/{id}/venues", cfg.Employees.UpdateVenues)
				r.Put("/{id}/face", cfg.Employees.EnrollFace)
				r.Delete("/{id}/face", cfg.Employees.ClearFace)
			})
		}

		if cfg.Admins != nil {
			r.Route("/admins", func(r chi.Router) {
				r.Get("/", cfg.Admins.List)
				r.Post("/", cfg.Admins.Create)
				r.Put("/{username}", cfg.Admins.Update)
				r.Delete("/{username}", cfg.Admins.Delete)
			})
		}

		if cfg.Reports != nil {
			r.Get("/reports/meals", cfg.Reports.List)
			r.Get("/reports/meals.csv", cfg.Reports.ExportCSV)
		}
	})

	return r
}

func rateLimitOrNoop(limit int, logger *slog.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimit(limit, time.Minute, logger)
}
