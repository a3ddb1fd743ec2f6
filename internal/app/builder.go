package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/toolhive-repo-server/internal/api"
	"github.com/stacklok/toolhive-repo-server/internal/clone"
	"github.com/stacklok/toolhive-repo-server/internal/config"
	"github.com/stacklok/toolhive-repo-server/internal/git"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
	"github.com/stacklok/toolhive-repo-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 2 * time.Minute
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 15*time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// RepoAppOptions is a function that configures the repository app builder
type RepoAppOptions func(*repoAppConfig) error

// repoAppConfig collects the inputs of NewRepoApp.
// It supports dependency injection for testing while providing sensible defaults for production.
type repoAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	gitClient git.Client
	executor  clone.Executor
	telemetry *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...RepoAppOptions) (*repoAppConfig, error) {
	cfg := &repoAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewRepoApp creates the application from the given options
func NewRepoApp(ctx context.Context, opts ...RepoAppOptions) (*RepoApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	repoService, coordinator, err := buildCloneComponents(ctx, cfg)
	if err != nil {
		_ = cfg.telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build clone components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, coordinator, repoService)
	if err != nil {
		_ = coordinator.Shutdown(ctx)
		_ = cfg.telemetry.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &RepoApp{
		config: cfg.config,
		components: &AppComponents{
			CloneCoordinator:  coordinator,
			RepositoryService: repoService,
			Telemetry:         cfg.telemetry,
		},
		httpServer: httpServer,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds the time spent serving one request
func WithRequestTimeout(timeout time.Duration) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", timeout)
		}
		cfg.requestTimeout = timeout
		if cfg.writeTimeout <= timeout {
			cfg.writeTimeout = timeout + 15*time.Second
		}
		return nil
	}
}

// WithGitClient allows injecting a custom git client (for testing)
func WithGitClient(client git.Client) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		cfg.gitClient = client
		return nil
	}
}

// WithExecutor allows injecting a custom clone executor (for testing)
func WithExecutor(executor clone.Executor) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		cfg.executor = executor
		return nil
	}
}

// WithTelemetry sets already initialised telemetry providers
func WithTelemetry(t *telemetry.Telemetry) RepoAppOptions {
	return func(cfg *repoAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildCloneComponents builds the repository service, clone executor and coordinator
func buildCloneComponents(
	_ context.Context,
	b *repoAppConfig,
) (repository.Service, clone.Coordinator, error) {
	slog.Info("Initializing clone components")

	root := b.config.Repositories.Root
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create repositories root %s: %w", root, err)
	}

	password, err := b.config.GetPassword()
	if err != nil {
		return nil, nil, err
	}
	var auth *git.AuthConfig
	if password != "" {
		auth = &git.AuthConfig{
			Username: b.config.GetUsername(),
			Password: password,
		}
		slog.Info("Git authentication configured", "username", auth.Username)
	}

	if b.gitClient == nil {
		b.gitClient = git.NewDefaultGitClient()
	}

	repoService := repository.NewService(root, b.gitClient,
		repository.WithAuth(auth),
		repository.WithTracerProvider(b.telemetry.TracerProvider()),
	)

	if b.executor == nil {
		b.executor = clone.NewGitExecutor(root, b.gitClient,
			clone.WithExecutorAuth(auth),
			clone.WithDepth(b.config.GetDepth()),
			clone.WithAttemptTimeout(b.config.GetAttemptTimeout()),
			clone.WithRetry(b.config.GetMaxAttempts(), b.config.GetInitialBackoff()),
		)
	}

	coordOpts := []clone.Option{
		clone.WithTimeout(b.config.GetCloneTimeout()),
		clone.WithTracerProvider(b.telemetry.TracerProvider()),
	}

	if b.config.Telemetry.MetricsEnabled() {
		cloneMetrics, err := telemetry.NewCloneMetrics(b.telemetry.MeterProvider())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create clone metrics: %w", err)
		}
		coordOpts = append(coordOpts, clone.WithCloneMetrics(cloneMetrics))
		slog.Info("Clone metrics enabled")
	}

	coordinator := clone.New(b.executor, repoService, coordOpts...)
	slog.Info("Clone components initialized successfully", "root", root)

	return repoService, coordinator, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *repoAppConfig,
	coordinator clone.Coordinator,
	repoService repository.Service,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry middlewares go first to observe every request
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.config.Telemetry.TracingEnabled() {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.telemetry.TracerProvider()))
		slog.Info("HTTP tracing middleware enabled")
	}
	if b.config.Telemetry.MetricsEnabled() {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		telemetryMiddlewares = append(telemetryMiddlewares, metricsMiddleware)
		slog.Info("HTTP metrics middleware enabled")
	}
	b.middlewares = append(telemetryMiddlewares, b.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
	}
	if handler := b.telemetry.MetricsHandler(); handler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(handler))
	}

	router := api.NewServer(coordinator, repoService, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
