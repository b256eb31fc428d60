package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/relayforge/mcp-auth/internal/auth/http"
	"github.com/relayforge/mcp-auth/internal/auth/scope"
	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/internal/auth/store"
	"github.com/relayforge/mcp-auth/internal/auth/store/drivers/sqlite"
	"github.com/relayforge/mcp-auth/pkg/jwtx"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the authorization server with all its
// dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   *jwtx.HS256
	registry *scope.Registry

	// Host application hooks, set through Options.
	userData   service.UserDataProvider
	identity   httpapi.IdentityResolver
	scopeSetup func(*scope.Registry)

	tokenService        *service.TokenService
	authorizeService    *service.AuthorizeService
	clientService       *service.ClientService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// Option customizes an Application before the HTTP layer is wired.
type Option func(*Application)

// WithUserData installs the host application's user lookup for claims
// enrichment.
func WithUserData(provider service.UserDataProvider) Option {
	return func(app *Application) { app.userData = provider }
}

// WithIdentityResolver installs the host application's session bridge for
// the authorization endpoint.
func WithIdentityResolver(resolver httpapi.IdentityResolver) Option {
	return func(app *Application) { app.identity = resolver }
}

// WithScopes registers additional scopes on top of the defaults.
func WithScopes(register func(*scope.Registry)) Option {
	return func(app *Application) { app.scopeSetup = register }
}

// New creates an Application with all dependencies initialized.
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mcp-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	for _, opt := range opts {
		opt(app)
	}

	signer, err := jwtx.NewHS256([]byte(cfg.HMACSecret))
	if err != nil {
		return nil, fmt.Errorf("initialize token signer: %w", err)
	}
	app.signer = signer

	app.initScopes()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("mcp-auth starting", "port", app.cfg.Port, "issuer", app.cfg.Issuer, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down mcp-auth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("mcp-auth stopped")
	return nil
}

func (app *Application) initScopes() {
	app.registry = scope.NewRegistry()
	app.registry.Register("mcp:read", "Read access", "Read MCP resources and tool results.", true)
	app.registry.Register("mcp:write", "Write access", "Invoke MCP tools and modify resources.", false)

	if app.scopeSetup != nil {
		app.scopeSetup(app.registry)
	}
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s", app.cfg.DatabaseFile)
	db, err := sqlite.New(context.Background(), dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	app.logger.Info("database ready", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices() {
	app.tokenService = service.NewTokenService(app.db, app.signer, service.TokenServiceConfig{
		Issuer:          app.cfg.Issuer,
		AccessTokenTTL:  app.cfg.AccessTokenTTL,
		RefreshTokenTTL: app.cfg.RefreshTokenTTL,
		ResourcePath:    app.cfg.ResourcePath,
		UserData:        app.userData,
	})

	app.authorizeService = service.NewAuthorizeService(app.db, app.registry, app.cfg.AuthorizationCodeTTL)
	app.clientService = service.NewClientService(app.db, app.registry)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cfg.Issuer,
		app.cfg.ResourcePath,
		BuildVersion,
		app.db,
		app.registry,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.ClientService = app.clientService
	router.Identity = app.identity
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
