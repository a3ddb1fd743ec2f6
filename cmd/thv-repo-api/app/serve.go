package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-repo-server/internal/app"
	"github.com/stacklok/toolhive-repo-server/internal/config"
	"github.com/stacklok/toolhive-repo-server/internal/versions"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
)

func newServeCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the repository API server",
		Long: `Start the repository API server.

The server requires a configuration file (--config) that specifies:
- The root directory holding the local clones
- Optional git credentials, clone depth, timeouts and retries
- Optional telemetry settings

Flags can also be set with THV_REPO_ADDRESS and THV_REPO_CONFIG.
See examples/ directory for sample configurations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, v.GetString("address"), v.GetString("config"))
		},
	}

	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	for _, name := range []string{"address", "config"} {
		if err := v.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
		}
	}

	return serveCmd
}

// runServe loads the configuration, starts the server and blocks until ctx is done
func runServe(ctx context.Context, address, configPath string) error {
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.GetVersionInfo().Version
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"repositories_root", cfg.Repositories.Root,
	)

	repoApp, err := app.NewRepoApp(ctx,
		app.WithConfig(cfg),
		app.WithAddress(address),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	info := versions.GetVersionInfo()
	slog.Info("Starting ToolHive repository API server",
		"version", info.Version,
		"commit", info.Commit,
		"address", address,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- repoApp.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := repoApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop application", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	if err := repoApp.Stop(defaultGracefulTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
