// Package git wraps go-git with the operations the repository server performs
// on local working trees: clone, inspect, fetch, pull and push.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// DefaultRemoteName is the remote every operation works against
const DefaultRemoteName = "origin"

// Client defines the interface for Git operations
type Client interface {
	// Clone clones a repository with the given configuration into config.Path
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// Open inspects the repository at path
	Open(ctx context.Context, path string) (*RepositoryInfo, error)

	// Fetch downloads objects and refs from the origin remote
	Fetch(ctx context.Context, path string, auth *AuthConfig) (*SyncResult, error)

	// Pull fetches from origin and fast-forwards the current branch
	Pull(ctx context.Context, path string, auth *AuthConfig) (*SyncResult, error)

	// Push pushes the current branch to origin
	Push(ctx context.Context, path string, auth *AuthConfig) (*SyncResult, error)
}

// defaultGitClient implements Client using go-git
type defaultGitClient struct{}

// NewDefaultGitClient creates a new defaultGitClient
func NewDefaultGitClient() Client {
	return &defaultGitClient{}
}

// Clone clones a repository with the given configuration
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("clone URL is required")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("clone path is required")
	}

	cloneOptions := &git.CloneOptions{
		URL:        config.URL,
		RemoteName: DefaultRemoteName,
		Auth:       authMethod(config.Auth),
		Progress:   config.Progress,
	}

	if config.Depth > 0 {
		cloneOptions.Depth = config.Depth
	}
	if config.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(config.Branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, config.Path, false, cloneOptions)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryAlreadyExists, config.Path)
		}
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	return c.describe(repo, config.Path)
}

// Open inspects the repository at path
func (c *defaultGitClient) Open(_ context.Context, path string) (*RepositoryInfo, error) {
	repo, err := openRepository(path)
	if err != nil {
		return nil, err
	}
	return c.describe(repo, path)
}

// Fetch downloads objects and refs from the origin remote
func (c *defaultGitClient) Fetch(ctx context.Context, path string, auth *AuthConfig) (*SyncResult, error) {
	repo, err := openRepository(path)
	if err != nil {
		return nil, err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: DefaultRemoteName,
		Auth:       authMethod(auth),
	})
	return c.syncResult(repo, "fetch", err)
}

// Pull fetches from origin and fast-forwards the current branch
func (c *defaultGitClient) Pull(ctx context.Context, path string, auth *AuthConfig) (*SyncResult, error) {
	repo, err := openRepository(path)
	if err != nil {
		return nil, err
	}

	workTree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	err = workTree.PullContext(ctx, &git.PullOptions{
		RemoteName: DefaultRemoteName,
		Auth:       authMethod(auth),
	})
	return c.syncResult(repo, "pull", err)
}

// Push pushes the current branch to origin
func (c *defaultGitClient) Push(ctx context.Context, path string, auth *AuthConfig) (*SyncResult, error) {
	repo, err := openRepository(path)
	if err != nil {
		return nil, err
	}

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: DefaultRemoteName,
		Auth:       authMethod(auth),
	})
	return c.syncResult(repo, "push", err)
}

// syncResult converts the outcome of a remote operation into a SyncResult
func (*defaultGitClient) syncResult(repo *git.Repository, operation string, err error) (*SyncResult, error) {
	result := &SyncResult{}
	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		result.UpToDate = true
	default:
		return nil, fmt.Errorf("failed to %s repository: %w", operation, err)
	}

	if ref, headErr := repo.Head(); headErr == nil {
		result.Head = ref.Hash().String()
	}
	return result, nil
}

// describe builds the RepositoryInfo of an opened repository
func (*defaultGitClient) describe(repo *git.Repository, path string) (*RepositoryInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}

	info := &RepositoryInfo{Path: absPath}

	remote, err := repo.Remote(DefaultRemoteName)
	switch {
	case err == nil:
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.RemoteURL = urls[0]
		}
	case errors.Is(err, git.ErrRemoteNotFound):
		slog.Debug("Repository has no origin remote", "path", absPath)
	default:
		return nil, fmt.Errorf("failed to read origin remote: %w", err)
	}

	ref, err := repo.Head()
	switch {
	case err == nil:
		info.Head = ref.Hash().String()
		if ref.Name().IsBranch() {
			info.Branch = ref.Name().Short()
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Freshly initialised repository without commits
	default:
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	return info, nil
}

// openRepository opens the working tree at path
func openRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, path)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// authMethod returns the go-git auth method for the given credentials, nil for anonymous access
func authMethod(auth *AuthConfig) transport.AuthMethod {
	if auth == nil || auth.Password == "" {
		return nil
	}

	username := auth.Username
	if username == "" {
		// Token auth accepts any username, but it must not be empty
		username = "git"
	}
	return &githttp.BasicAuth{
		Username: username,
		Password: auth.Password,
	}
}
