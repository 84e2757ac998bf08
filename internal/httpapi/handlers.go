package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"orgguard.dev/api/spec"
	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
	"orgguard.dev/internal/auth"
	"orgguard.dev/internal/guard"
	"orgguard.dev/internal/obs"
	"orgguard.dev/internal/ratelimit"
	"orgguard.dev/internal/stream"
)

const serviceName = "orgguard-api"

// ReadinessChecker reports whether the service can take traffic.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyFunc adapts a ping function (e.g. pg.Store.Ping). A nil ReadyFunc is always ready.
type ReadyFunc func(ctx context.Context) error

func (f ReadyFunc) Check(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Authenticate(ctx context.Context, token string) (access.Actor, error)
}

type Guard interface {
	Check(ctx context.Context, moduleKey string, action access.Action) (guard.Decision, error)
}

type Resolver interface {
	ResolveAll(ctx context.Context, userID, roleID string) (map[string]access.Permissions, error)
}

// Deps wires the HTTP layer. Limiter and Stream are optional.
type Deps struct {
	Store          access.Store
	Auth           Authenticator
	Guard          Guard
	Resolver       Resolver
	Admin          *access.Admin
	Recorder       *audit.Recorder
	AuditLog       audit.Reader
	Limiter        ratelimit.Limiter
	Stream         *stream.Hub
	Ready          ReadinessChecker
	Logger         *zap.Logger
	Version        string
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// API is the HTTP layer.
type API struct {
	router   chi.Router
	store    access.Store
	auth     Authenticator
	guard    Guard
	resolver Resolver
	admin    *access.Admin
	recorder *audit.Recorder
	auditLog audit.Reader
	limiter  ratelimit.Limiter
	stream   *stream.Hub
	ready    ReadinessChecker
	log      *zap.Logger
	version  string
}

func New(d Deps) (*API, error) {
	switch {
	case d.Store == nil, d.Auth == nil, d.Guard == nil, d.Resolver == nil:
		return nil, errors.New("httpapi: store, auth, guard and resolver are required")
	case d.Admin == nil, d.Recorder == nil, d.AuditLog == nil:
		return nil, errors.New("httpapi: admin, audit recorder and audit reader are required")
	}
	a := &API{
		store:    d.Store,
		auth:     d.Auth,
		guard:    d.Guard,
		resolver: d.Resolver,
		admin:    d.Admin,
		recorder: d.Recorder,
		auditLog: d.AuditLog,
		limiter:  d.Limiter,
		stream:   d.Stream,
		ready:    d.Ready,
		log:      obs.OrNop(d.Logger),
		version:  d.Version,
	}
	if a.ready == nil {
		a.ready = ReadyFunc(nil)
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(
		RequestID,
		obs.Instrument,
		LoggingJSON(a.log),
		SecurityHeaders,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, "Retry-After"},
			MaxAge:         600,
		}),
		MaxBodyBytes(d.MaxBodyBytes),
		a.withAuditTrail,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// health/ready/metrics/docs
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())
	r.Get("/openapi.yaml", a.OpenAPISpec)
	r.Get("/api/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Post("/api/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)
		r.Get("/api/auth/me", a.handleMe)
		r.Get("/api/modules", a.handleModules)

		r.Group(func(r chi.Router) {
			r.Use(requireOrgContext, a.rateLimitByRole)
			r.Get("/api/access/{moduleKey}/{action}", a.handleAccessProbe)
			r.Put("/api/admin/users/{userId}/module-overrides", a.handleSetOverrides)
			r.Get("/api/admin/users/{userId}/module-overrides", a.handleListOverrides)
			r.Group(func(r chi.Router) {
				r.Use(a.requireAccess(access.ModuleReports, access.ActionRead))
				r.Use(requireRole(access.RoleOrgAdmin, "only org_admin can view audit logs"))
				r.Get("/api/audit", a.handleAuditList)
				r.Get("/api/audit/stream", a.handleAuditStream)
			})
		})

		r.Route("/api/platform", func(r chi.Router) {
			r.Use(requireSuperadmin)
			r.Get("/organizations", a.handleListOrganizations)
			r.Post("/organizations", a.handleCreateOrganization)
			r.Put("/roles/{roleKey}/module-access", a.handleSetRoleAccess)
		})
	})

	a.router = r
	return a, nil
}

// Handler возвращает http.Handler для сервера.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
