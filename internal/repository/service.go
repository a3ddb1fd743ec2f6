// Package repository lists and maintains the local clones kept under the
// repository root directory.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-repo-server/internal/git"
	"github.com/stacklok/toolhive-repo-server/internal/otel"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

const (
	// DefaultInspectConcurrency bounds how many directories are opened at the same time
	DefaultInspectConcurrency = 8

	// TracerName is the name used for the repository service tracer
	TracerName = "github.com/stacklok/toolhive-repo-server/repository"
)

var (
	// ErrRepositoryNotFound is returned when no clone with the requested name exists under the root
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrInvalidRepositoryName is returned for names that would escape the root directory
	ErrInvalidRepositoryName = errors.New("invalid repository name")
)

// Repository is a local clone under the repository root
type Repository struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	RemoteURL string `json:"remote_url"`
}

// Service provides read and maintenance access to the local clones
type Service interface {
	// ListRepositories returns every clone under the root, sorted by name
	ListRepositories(ctx context.Context) ([]Repository, error)

	// Get returns the clone with the given directory name
	Get(ctx context.Context, name string) (*Repository, error)

	// Fetch downloads new objects and refs from the clone's origin
	Fetch(ctx context.Context, name string) (*git.SyncResult, error)

	// Pull fetches from origin and fast-forwards the clone's current branch
	Pull(ctx context.Context, name string) (*git.SyncResult, error)

	// Push pushes the clone's current branch to origin
	Push(ctx context.Context, name string) (*git.SyncResult, error)

	// CheckReadiness reports whether the root directory is usable
	CheckReadiness(ctx context.Context) error
}

// Option configures the repository service
type Option func(*service)

// WithAuth sets the credentials used for remote operations
func WithAuth(auth *git.AuthConfig) Option {
	return func(s *service) {
		s.auth = auth
	}
}

// WithTracerProvider sets the tracer provider used for repository spans
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *service) {
		if provider != nil {
			s.tracer = provider.Tracer(TracerName)
		}
	}
}

// WithInspectConcurrency sets how many directories are inspected concurrently
func WithInspectConcurrency(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

type service struct {
	root        string
	gitClient   git.Client
	auth        *git.AuthConfig
	concurrency int
	tracer      trace.Tracer
}

// NewService creates a repository service over the clones in root
func NewService(root string, gitClient git.Client, opts ...Option) Service {
	s := &service{
		root:        root,
		gitClient:   gitClient,
		concurrency: DefaultInspectConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRepositories returns every clone under the root, sorted by name.
// Directories that are not git repositories are skipped and a missing root yields an empty list.
func (s *service) ListRepositories(ctx context.Context) ([]Repository, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "repository.list")
	defer span.End()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Repository{}, nil
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to read repository root: %w", err)
	}

	var (
		mu    sync.Mutex
		repos = make([]Repository, 0, len(entries))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		g.Go(func() error {
			repo, err := s.inspect(gctx, name)
			if err != nil {
				if errors.Is(err, ErrRepositoryNotFound) {
					return nil
				}
				slog.Warn("Failed to inspect repository", "name", name, "error", err)
				return nil
			}
			mu.Lock()
			repos = append(repos, *repo)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(repos)))

	slices.SortFunc(repos, func(a, b Repository) int {
		return strings.Compare(a.Name, b.Name)
	})
	return repos, nil
}

// Get returns the clone with the given directory name
func (s *service) Get(ctx context.Context, name string) (*Repository, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "repository.get",
		trace.WithAttributes(otel.AttrRepository.String(name)))
	defer span.End()

	repo, err := s.get(ctx, name)
	if err != nil && !errors.Is(err, ErrRepositoryNotFound) {
		otel.RecordError(span, err)
	}
	return repo, err
}

func (s *service) get(ctx context.Context, name string) (*Repository, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return s.inspect(ctx, name)
}

// Fetch downloads new objects and refs from the clone's origin
func (s *service) Fetch(ctx context.Context, name string) (*git.SyncResult, error) {
	return s.sync(ctx, name, "fetch", s.gitClient.Fetch)
}

// Pull fetches from origin and fast-forwards the clone's current branch
func (s *service) Pull(ctx context.Context, name string) (*git.SyncResult, error) {
	return s.sync(ctx, name, "pull", s.gitClient.Pull)
}

// Push pushes the clone's current branch to origin
func (s *service) Push(ctx context.Context, name string) (*git.SyncResult, error) {
	return s.sync(ctx, name, "push", s.gitClient.Push)
}

// CheckReadiness reports whether the root directory exists and is a directory
func (s *service) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("repository root is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository root %s is not a directory", s.root)
	}
	return nil
}

type syncFunc func(ctx context.Context, path string, auth *git.AuthConfig) (*git.SyncResult, error)

func (s *service) sync(ctx context.Context, name, operation string, fn syncFunc) (*git.SyncResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "repository."+operation,
		trace.WithAttributes(
			otel.AttrRepository.String(name),
			otel.AttrGitOperation.String(operation),
		))
	defer span.End()

	repo, err := s.get(ctx, name)
	if err != nil {
		return nil, err
	}

	result, err := fn(ctx, repo.Path, s.auth)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrUpToDate.Bool(result.UpToDate))
	slog.DebugContext(ctx, "Repository synchronised",
		"repository", name, "operation", operation, "up_to_date", result.UpToDate)
	return result, nil
}

func (s *service) inspect(ctx context.Context, name string) (*Repository, error) {
	info, err := s.gitClient.Open(ctx, filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, name)
		}
		return nil, fmt.Errorf("failed to open repository %s: %w", name, err)
	}
	return &Repository{
		Name:      name,
		Path:      info.Path,
		RemoteURL: info.RemoteURL,
	}, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRepositoryName, name)
	}
	return nil
}
