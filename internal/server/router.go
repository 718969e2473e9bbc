package server

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/auth"
	gatemiddleware "github.com/koman-maciej/insurance/internal/middleware"
)

// RouterOptions controls the construction of the public router.
// Routes whose collaborator is nil are not mounted.
type RouterOptions struct {
	Granter       TokenGranter
	Authenticator gatemiddleware.Authenticator
	Enforcer      casbin.IEnforcer
	Users         UserDirectory
	Policies      PolicyGateway
	Logger        *zap.Logger
	CORSOptions   *cors.Options
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the policy for the configured origins.
// go-chi/cors treats an empty origin list as "*", so NewRouter does not
// mount the CORS handler at all when no origins are configured.
func DefaultCORSOptions(allowedOrigins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func corsEnabled(o cors.Options) bool {
	return len(o.AllowedOrigins) > 0 || o.AllowOriginFunc != nil
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func baseRouter(logger *zap.Logger, health http.HandlerFunc, extra ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(gatemiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(extra...)

	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/health", health)
	return r
}

// NewRouter assembles the public router: the token endpoint and the REST
// routes, each gated on exactly one action.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var extra []func(http.Handler) http.Handler
	if c := opts.CORSOptions; c != nil && corsEnabled(*c) {
		extra = append(extra, cors.Handler(*c))
	}
	r := baseRouter(logger, opts.HealthHandler, extra...)

	if opts.Granter != nil {
		r.Post("/oauth/token", HandleToken(opts.Granter, logger))
	}

	if opts.Authenticator == nil {
		return r
	}

	gate := func(action string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			authn := gatemiddleware.Authenticate(opts.Authenticator, logger)
			authz := gatemiddleware.RequireAction(opts.Enforcer, action, logger)
			return authn(authz(next))
		}
	}

	r.Route("/rest", func(r chi.Router) {
		if opts.Users != nil {
			r.With(gate(auth.ActionUserRead)).Get("/users/{userId}", HandleGetUser(opts.Users, logger))
			r.With(gate(auth.ActionUserRead)).Get("/users", HandleFindUser(opts.Users, logger))
		}
		if opts.Policies != nil {
			r.With(gate(auth.ActionPolicyListByUser)).Get("/policies", HandleListPolicies(opts.Policies, logger))
			r.With(gate(auth.ActionPolicyReadUser)).Get("/policies/{policyId}/user", HandleGetPolicyUser(opts.Policies, logger))
		}
	})

	return r
}

// InternalRouterOptions controls the construction of the internal router.
type InternalRouterOptions struct {
	Users         UserDirectory
	Logger        *zap.Logger
	HealthHandler http.HandlerFunc
}

// NewInternalRouter serves ungated user lookups for trusted callers such as
// the policy gateway. It must only be bound to a private interface.
func NewInternalRouter(opts InternalRouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := baseRouter(logger, opts.HealthHandler)
	if opts.Users != nil {
		r.Get("/rest/internal/users/{userId}", HandleGetUser(opts.Users, logger))
		r.Get("/rest/internal/users", HandleFindUser(opts.Users, logger))
	}
	return r
}
