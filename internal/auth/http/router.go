package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/relayforge/mcp-auth/internal/auth/scope"
	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/internal/auth/store"
	"github.com/relayforge/mcp-auth/pkg/httpx"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       string
	resourcePath string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	registry         *scope.Registry
	TokenService     *service.TokenService
	AuthorizeService *service.AuthorizeService
	ClientService    *service.ClientService

	// Identity bridges to the host application's session handling for the
	// authorization endpoint. Defaults to denying every request.
	Identity IdentityResolver
}

func NewRouter(
	issuer, resourcePath, buildVersion string,
	st store.Store,
	registry *scope.Registry,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		resourcePath: resourcePath,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		registry:     registry,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerWellKnown()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	identity := r.Identity
	if identity == nil {
		identity = IdentityResolverFunc(func(*http.Request) (Identity, error) {
			return Identity{}, nil
		})
	}

	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Identity:         identity,
		Issuer:           r.issuer,
	}

	// GET /authorize is mostly validation; POST carries the consent
	// decision and gets the tighter limit.
	r.Mux.Handle("GET /oauth/authorize",
		httpx.Chain(authorizeHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /oauth/authorize",
		httpx.Chain(authorizeHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /token - strict rate limit by IP (covers both grant types).
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /register - open registration, strict limit against churn.
	registerHandler := &RegisterHandler{ClientService: r.ClientService}
	r.Mux.Handle("POST /oauth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	userInfoHandler := &UserInfoHandler{TokenService: r.TokenService}
	r.Mux.Handle("GET /oauth/userinfo",
		httpx.Chain(userInfoHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerWellKnown() {
	h := &WellKnownHandler{
		Issuer:       r.issuer,
		ResourcePath: r.resourcePath,
		Registry:     r.registry,
	}

	limit := httpx.RateLimitByIP(httpx.LenientLimit)
	r.Mux.Handle("GET /.well-known/oauth-authorization-server",
		httpx.Chain(http.HandlerFunc(h.HandleAuthorizationServer), limit))
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(http.HandlerFunc(h.HandleOpenIDConfiguration), limit))
	r.Mux.Handle("GET /.well-known/oauth-protected-resource",
		httpx.Chain(http.HandlerFunc(h.HandleProtectedResource), limit))
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(http.HandlerFunc(h.HandleJWKS), limit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
