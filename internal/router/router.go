package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"teaching-workload/internal/config"
	"teaching-workload/internal/handler"
	"teaching-workload/internal/middleware"
	"teaching-workload/internal/model"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Semester *handler.SemesterHandler
	Audit    *handler.AuditHandler
}

// route is one entry of the API table. A nil policy marks a public route.
type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
	policy  *middleware.Policy
}

var (
	controllerOnly = &middleware.Policy{Roles: []model.Role{model.RoleController}}
	// Routes a user must reach while still holding a temporary password.
	anyUserDuringPasswordChange = &middleware.Policy{AllowTemporaryPassword: true}
)

func routes(h Handlers) []route {
	return []route{
		{http.MethodPost, "/auth/login", h.Auth.Login, nil},
		{http.MethodGet, "/auth/profile", h.Auth.Profile, anyUserDuringPasswordChange},

		{http.MethodPost, "/users/change-password", h.User.ChangePassword, anyUserDuringPasswordChange},
		{http.MethodGet, "/users", h.User.List, controllerOnly},
		{http.MethodPost, "/users", h.User.Create, controllerOnly},
		{http.MethodGet, "/users/{id}", h.User.Get, controllerOnly},
		{http.MethodPut, "/users/{id}", h.User.Update, controllerOnly},

		{http.MethodGet, "/semester", h.Semester.List, controllerOnly},
		{http.MethodPost, "/semester", h.Semester.Create, controllerOnly},
		{http.MethodGet, "/semester/{id}", h.Semester.Get, controllerOnly},
		{http.MethodPut, "/semester/{id}", h.Semester.Update, controllerOnly},

		{http.MethodGet, "/audit", h.Audit.List, controllerOnly},
	}
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers, health healthChecker) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(rateLimitMiddleware.Handler)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", healthHandler(health))

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		for _, rt := range routes(handlers) {
			var h http.Handler = rt.handler
			if rt.policy != nil {
				h = authMiddleware.Protect(*rt.policy)(h)
			}
			api.Method(rt.method, rt.pattern, h)
		}
	})

	return r
}

func healthHandler(health healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := health.Health(ctx); err != nil {
				slog.Error("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
