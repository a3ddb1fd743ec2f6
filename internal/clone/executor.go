package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/toolhive-repo-server/internal/git"
)

const (
	// DefaultMaxAttempts is the number of clone attempts made for transient failures
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the wait before the first retry
	DefaultInitialBackoff = time.Second
)

// ExecutorOption configures the git executor
type ExecutorOption func(*gitExecutor)

// WithExecutorAuth sets the credentials used to clone
func WithExecutorAuth(auth *git.AuthConfig) ExecutorOption {
	return func(e *gitExecutor) {
		e.auth = auth
	}
}

// WithDepth limits clones to the given number of commits. Zero clones the full history.
func WithDepth(depth int) ExecutorOption {
	return func(e *gitExecutor) {
		e.depth = depth
	}
}

// WithAttemptTimeout bounds a single clone attempt. Zero means no bound.
func WithAttemptTimeout(timeout time.Duration) ExecutorOption {
	return func(e *gitExecutor) {
		e.attemptTimeout = timeout
	}
}

// WithRetry sets how many attempts are made and the wait before the first retry
func WithRetry(maxAttempts int, initialBackoff time.Duration) ExecutorOption {
	return func(e *gitExecutor) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			e.initialBackoff = initialBackoff
		}
	}
}

type gitExecutor struct {
	root      string
	gitClient git.Client

	auth           *git.AuthConfig
	depth          int
	attemptTimeout time.Duration
	maxAttempts    int
	initialBackoff time.Duration
}

// NewGitExecutor creates an Executor cloning into <root>/<repository name>
func NewGitExecutor(root string, gitClient git.Client, opts ...ExecutorOption) Executor {
	e := &gitExecutor{
		root:           root,
		gitClient:      gitClient,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clone clones repositoryURL into the root directory.
// Only cancellation and expiry of ctx are returned as errors; every other failure is reported in the Result.
func (e *gitExecutor) Clone(ctx context.Context, repositoryURL string, progress ProgressFunc) (*Result, error) {
	name, err := RepositoryName(repositoryURL)
	if err != nil {
		return &Result{Message: err.Error()}, nil
	}
	destination := filepath.Join(e.root, name)

	if info, err := e.gitClient.Open(ctx, destination); err == nil {
		return existingClone(destination, repositoryURL, info), nil
	}
	if _, err := os.Stat(destination); err == nil {
		return &Result{
			Message: fmt.Sprintf("Destination %s already exists and is not a git repository", destination),
		}, nil
	}

	if err := os.MkdirAll(e.root, 0o755); err != nil {
		return &Result{Message: fmt.Sprintf("failed to create repository root: %v", err)}, nil
	}

	writer := git.NewProgressWriter(func(p git.Progress) {
		if progress != nil {
			progress(Progress{Percentage: p.Percentage, Stage: p.Stage, Details: p.Details})
		}
	})
	defer writer.Flush()

	attempt := 0
	operation := func() (*git.RepositoryInfo, error) {
		attempt++
		attemptCtx, cancel := e.attemptContext(ctx)
		defer cancel()

		info, err := e.gitClient.Clone(attemptCtx, &git.CloneConfig{
			URL:      repositoryURL,
			Path:     destination,
			Depth:    e.depth,
			Auth:     e.auth,
			Progress: writer,
		})
		if err == nil {
			return info, nil
		}

		if !errors.Is(err, git.ErrRepositoryAlreadyExists) {
			e.cleanup(destination)
		}
		if git.IsPermanent(err) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		slog.Warn("Clone attempt failed", "repository_url", repositoryURL, "attempt", attempt, "error", err)
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = e.initialBackoff

	info, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(e.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Debug("Retrying clone", "repository_url", repositoryURL, "wait", wait, "error", err)
		}),
	)
	switch {
	case err == nil:
		slog.Info("Repository cloned", "repository_url", repositoryURL, "path", info.Path, "head", info.Head)
		return &Result{Succeeded: true}, nil
	case errors.Is(err, git.ErrRepositoryAlreadyExists):
		if existing, openErr := e.gitClient.Open(ctx, destination); openErr == nil {
			return existingClone(destination, repositoryURL, existing), nil
		}
		return alreadyExists(destination), nil
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		e.cleanup(destination)
		return nil, fmt.Errorf("clone of %s canceled: %w", repositoryURL, context.Canceled)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		e.cleanup(destination)
		return nil, fmt.Errorf("clone of %s: %w", repositoryURL, context.DeadlineExceeded)
	default:
		e.cleanup(destination)
		return &Result{Message: err.Error()}, nil
	}
}

func (e *gitExecutor) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.attemptTimeout > 0 {
		return context.WithTimeout(ctx, e.attemptTimeout)
	}
	return context.WithCancel(ctx)
}

func (*gitExecutor) cleanup(destination string) {
	if err := os.RemoveAll(destination); err != nil {
		slog.Warn("Failed to remove partial clone", "path", destination, "error", err)
	}
}

// existingClone reports a repository found at destination. It only counts as
// already cloned when its origin is the requested remote.
func existingClone(destination, repositoryURL string, info *git.RepositoryInfo) *Result {
	if info == nil || NormalizeURL(info.RemoteURL) != NormalizeURL(repositoryURL) {
		remote := ""
		if info != nil {
			remote = info.RemoteURL
		}
		return &Result{
			Message: fmt.Sprintf("Destination %s already holds a clone of %q, not %q", destination, remote, repositoryURL),
		}
	}
	return alreadyExists(destination)
}

func alreadyExists(destination string) *Result {
	return &Result{
		Succeeded:     true,
		AlreadyExists: true,
		Message:       fmt.Sprintf("Repository already exists at %s", destination),
	}
}

// RepositoryName returns the directory name a clone of repositoryURL is stored under:
// the last path segment with any ".git" suffix removed.
func RepositoryName(repositoryURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(repositoryURL), "/")
	if idx := strings.LastIndexAny(trimmed, `/\:`); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	name := strings.TrimSuffix(trimmed, ".git")

	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("cannot determine repository name from URL %q", repositoryURL)
	}
	return name, nil
}
