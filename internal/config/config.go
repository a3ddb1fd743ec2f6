// Package config provides configuration loading and management for the repository server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-repo-server/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables overriding configuration values
	EnvPrefix = "THV_REPO"

	// PasswordEnvVar holds the git password when no passwordFile is configured
	PasswordEnvVar = EnvPrefix + "_GIT_PASSWORD"

	// DefaultMaxAttempts is the number of clone attempts when git.clone.maxAttempts is unset
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the first retry delay when git.clone.initialBackoff is unset
	DefaultInitialBackoff = time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Repositories RepositoriesConfig `yaml:"repositories"`
	Git          *GitConfig         `yaml:"git,omitempty"`
	Clone        *CloneConfig       `yaml:"clone,omitempty"`
	Telemetry    *telemetry.Config  `yaml:"telemetry,omitempty"`
}

// RepositoriesConfig defines where local clones live
type RepositoriesConfig struct {
	// Root is the directory holding one subdirectory per cloned repository
	Root string `yaml:"root"`
}

// GitConfig defines how the server talks to git remotes
type GitConfig struct {
	Auth  *GitAuthConfig  `yaml:"auth,omitempty"`
	Clone *GitCloneConfig `yaml:"clone,omitempty"`
}

// GitAuthConfig defines HTTP basic auth credentials for remotes
type GitAuthConfig struct {
	// Username defaults to "git" when only a password or token is given
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the password or access token.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// GitCloneConfig defines the behaviour of a single clone
type GitCloneConfig struct {
	// Depth limits history to the given number of commits, 0 clones everything
	Depth int `yaml:"depth,omitempty"`

	// Timeout bounds one clone attempt (e.g., "30m")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxAttempts is the number of attempts made for transient failures
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// InitialBackoff is the delay before the first retry (e.g., "1s")
	InitialBackoff string `yaml:"initialBackoff,omitempty"`
}

// CloneConfig defines the clone coordinator settings
type CloneConfig struct {
	// Timeout bounds a whole clone operation including retries (e.g., "1h")
	Timeout string `yaml:"timeout,omitempty"`
}

// LoadConfig loads configuration from a YAML file, applies THV_REPO_* environment
// overrides and validates the result.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyEnvOverrides(newEnvViper())

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// newEnvViper returns a viper instance reading THV_REPO_* variables, with "." in keys mapped to "_"
func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnvOverrides replaces file values with environment values where those are set
func (c *Config) applyEnvOverrides(v *viper.Viper) {
	if v.IsSet("repositories.root") {
		c.Repositories.Root = v.GetString("repositories.root")
	}
	if v.IsSet("git.auth.username") {
		c.ensureGitAuth().Username = v.GetString("git.auth.username")
	}
	if v.IsSet("git.auth.passwordfile") {
		c.ensureGitAuth().PasswordFile = v.GetString("git.auth.passwordfile")
	}
	if v.IsSet("clone.timeout") {
		if c.Clone == nil {
			c.Clone = &CloneConfig{}
		}
		c.Clone.Timeout = v.GetString("clone.timeout")
	}
}

func (c *Config) ensureGitAuth() *GitAuthConfig {
	if c.Git == nil {
		c.Git = &GitConfig{}
	}
	if c.Git.Auth == nil {
		c.Git.Auth = &GitAuthConfig{}
	}
	return c.Git.Auth
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if strings.TrimSpace(c.Repositories.Root) == "" {
		errs = append(errs, errors.New("repositories.root is required"))
	}

	if c.Git != nil && c.Git.Clone != nil {
		gc := c.Git.Clone
		if gc.Depth < 0 {
			errs = append(errs, fmt.Errorf("git.clone.depth must not be negative, got %d", gc.Depth))
		}
		if gc.MaxAttempts < 0 {
			errs = append(errs, fmt.Errorf("git.clone.maxAttempts must not be negative, got %d", gc.MaxAttempts))
		}
		if err := validateDuration("git.clone.timeout", gc.Timeout); err != nil {
			errs = append(errs, err)
		}
		if err := validateDuration("git.clone.initialBackoff", gc.InitialBackoff); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Clone != nil {
		if err := validateDuration("clone.timeout", c.Clone.Timeout); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// validateDuration accepts empty values and positive Go durations
func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30m', '1h'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

// parseDuration parses a value that already passed validateDuration
func parseDuration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// GetCloneTimeout returns the bound for a whole clone operation, 0 when unbounded
func (c *Config) GetCloneTimeout() time.Duration {
	if c.Clone == nil {
		return 0
	}
	return parseDuration(c.Clone.Timeout)
}

// GetAttemptTimeout returns the bound for one clone attempt, 0 when unbounded
func (c *Config) GetAttemptTimeout() time.Duration {
	if c.Git == nil || c.Git.Clone == nil {
		return 0
	}
	return parseDuration(c.Git.Clone.Timeout)
}

// GetDepth returns the clone depth, 0 for full history
func (c *Config) GetDepth() int {
	if c.Git == nil || c.Git.Clone == nil {
		return 0
	}
	return c.Git.Clone.Depth
}

// GetMaxAttempts returns the number of clone attempts, using DefaultMaxAttempts if not specified
func (c *Config) GetMaxAttempts() int {
	if c.Git == nil || c.Git.Clone == nil || c.Git.Clone.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return c.Git.Clone.MaxAttempts
}

// GetInitialBackoff returns the first retry delay, using DefaultInitialBackoff if not specified
func (c *Config) GetInitialBackoff() time.Duration {
	if c.Git == nil || c.Git.Clone == nil || c.Git.Clone.InitialBackoff == "" {
		return DefaultInitialBackoff
	}
	return parseDuration(c.Git.Clone.InitialBackoff)
}

// GetUsername returns the configured git username, empty when unset
func (c *Config) GetUsername() string {
	if c.Git == nil || c.Git.Auth == nil {
		return ""
	}
	return c.Git.Auth.Username
}

// GetPassword returns the git password using the following priority:
// 1. Read from git.auth.passwordFile if specified
// 2. Read from THV_REPO_GIT_PASSWORD environment variable
//
// An empty password with no error means anonymous access.
func (c *Config) GetPassword() (string, error) {
	if c.Git != nil && c.Git.Auth != nil && c.Git.Auth.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(c.Git.Auth.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", c.Git.Auth.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return os.Getenv(PasswordEnvVar), nil
}
