package clone_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-repo-server/internal/clone"
	"github.com/stacklok/toolhive-repo-server/internal/git"
	"github.com/stacklok/toolhive-repo-server/internal/git/gittest"
	gitmocks "github.com/stacklok/toolhive-repo-server/internal/git/mocks"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
)

const remoteURL = "https://github.com/example/project.git"

// progressRecorder collects progress reports from concurrent callbacks
type progressRecorder struct {
	mu      sync.Mutex
	reports []clone.Progress
}

func (r *progressRecorder) record(p clone.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
}

func (r *progressRecorder) all() []clone.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]clone.Progress(nil), r.reports...)
}

func TestGitExecutor_CloneLocalRemote(t *testing.T) {
	t.Parallel()
	remote := gittest.CreateRemoteRepo(t, "project", gittest.TestRepoConfig{
		Files: map[string]string{"go.mod": "module example.com/project\n"},
	})
	root := filepath.Join(t.TempDir(), "repos")

	executor := clone.NewGitExecutor(root, git.NewDefaultGitClient(), clone.WithRetry(1, time.Millisecond))

	result, err := executor.Clone(context.Background(), remote, nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.False(t, result.AlreadyExists)
	assert.FileExists(t, filepath.Join(root, "project", "go.mod"))

	// A second request finds the clone on disk
	result, err = executor.Clone(context.Background(), remote, nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, result.AlreadyExists)
	assert.Equal(t, "Repository already exists at "+filepath.Join(root, "project"), result.Message)
}

func TestGitExecutor_ForwardsProgress(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := gitmocks.NewMockClient(ctrl)
	root := t.TempDir()

	client.EXPECT().Open(gomock.Any(), filepath.Join(root, "project")).Return(nil, git.ErrRepositoryNotFound)
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cfg *git.CloneConfig) (*git.RepositoryInfo, error) {
			assert.Equal(t, remoteURL, cfg.URL)
			assert.Equal(t, filepath.Join(root, "project"), cfg.Path)
			assert.Equal(t, 1, cfg.Depth)
			assert.Equal(t, &git.AuthConfig{Username: "bot", Password: "token"}, cfg.Auth)
			_, _ = cfg.Progress.Write([]byte("Counting objects:  50% (1/2)\rCounting objects: 100% (2/2), done.\n"))
			_, _ = cfg.Progress.Write([]byte("Receiving objects:  75% (3/4)"))
			return &git.RepositoryInfo{Path: cfg.Path}, nil
		})

	executor := clone.NewGitExecutor(root, client,
		clone.WithDepth(1),
		clone.WithExecutorAuth(&git.AuthConfig{Username: "bot", Password: "token"}),
	)

	recorder := &progressRecorder{}
	result, err := executor.Clone(context.Background(), remoteURL, recorder.record)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	reports := recorder.all()
	require.Len(t, reports, 3)
	assert.Equal(t, clone.Progress{Percentage: 50, Stage: "Counting objects", Details: "Counting objects:  50% (1/2)"}, reports[0])
	assert.Equal(t, 100, reports[1].Percentage)
	assert.Equal(t, "Receiving objects", reports[2].Stage)
	assert.Equal(t, 75, reports[2].Percentage)
}

func TestGitExecutor_Retry(t *testing.T) {
	t.Parallel()

	transient := errors.New("failed to clone repository: connection reset by peer")

	tests := []struct {
		name        string
		maxAttempts int
		errs        []error
		wantOK      bool
		wantMessage string
	}{
		{
			name:        "succeeds after transient failures",
			maxAttempts: 3,
			errs:        []error{transient, transient, nil},
			wantOK:      true,
		},
		{
			name:        "gives up after max attempts",
			maxAttempts: 2,
			errs:        []error{transient, transient},
			wantMessage: "connection reset by peer",
		},
		{
			name:        "permanent error is not retried",
			maxAttempts: 3,
			errs:        []error{fmt.Errorf("failed to clone repository: %w", transport.ErrAuthenticationRequired)},
			wantMessage: "authentication required",
		},
		{
			name:        "remote not found is not retried",
			maxAttempts: 3,
			errs:        []error{transport.ErrRepositoryNotFound},
			wantMessage: "repository not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			client := gitmocks.NewMockClient(ctrl)
			root := t.TempDir()

			client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, git.ErrRepositoryNotFound)
			calls := 0
			client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, cfg *git.CloneConfig) (*git.RepositoryInfo, error) {
					err := tt.errs[calls]
					calls++
					// Leave a partial clone behind on failure
					require.NoError(t, os.MkdirAll(filepath.Join(cfg.Path, ".git"), 0o755))
					if err != nil {
						return nil, err
					}
					return &git.RepositoryInfo{Path: cfg.Path}, nil
				}).Times(len(tt.errs))

			executor := clone.NewGitExecutor(root, client, clone.WithRetry(tt.maxAttempts, time.Millisecond))
			result, err := executor.Clone(context.Background(), remoteURL, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, result.Succeeded)
			assert.Equal(t, len(tt.errs), calls)

			if tt.wantOK {
				assert.DirExists(t, filepath.Join(root, "project"))
				return
			}
			assert.Contains(t, result.Message, tt.wantMessage)
			assert.NoDirExists(t, filepath.Join(root, "project"))
		})
	}
}

func TestGitExecutor_AlreadyExistsRace(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := gitmocks.NewMockClient(ctrl)
	root := t.TempDir()

	destination := filepath.Join(root, "project")
	gomock.InOrder(
		client.EXPECT().Open(gomock.Any(), destination).Return(nil, git.ErrRepositoryNotFound),
		client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, cfg *git.CloneConfig) (*git.RepositoryInfo, error) {
				// Someone else finished the same clone first
				require.NoError(t, os.MkdirAll(filepath.Join(cfg.Path, ".git"), 0o755))
				return nil, fmt.Errorf("%w: %s", git.ErrRepositoryAlreadyExists, cfg.Path)
			}),
		client.EXPECT().Open(gomock.Any(), destination).
			Return(&git.RepositoryInfo{Path: destination, RemoteURL: "https://github.com/Example/project"}, nil),
	)

	executor := clone.NewGitExecutor(root, client)
	result, err := executor.Clone(context.Background(), remoteURL, nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, result.AlreadyExists)
	assert.DirExists(t, destination)
}

func TestGitExecutor_DestinationHoldsOtherRemote(t *testing.T) {
	t.Parallel()
	first := gittest.CreateRemoteRepo(t, "project", gittest.TestRepoConfig{
		Files: map[string]string{"owner.txt": "first\n"},
	})
	second := gittest.CreateRemoteRepo(t, "project", gittest.TestRepoConfig{
		Files: map[string]string{"owner.txt": "second\n"},
	})
	root := filepath.Join(t.TempDir(), "repos")

	executor := clone.NewGitExecutor(root, git.NewDefaultGitClient(), clone.WithRetry(1, time.Millisecond))

	result, err := executor.Clone(context.Background(), first, nil)
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	// Same directory name, different owner: nothing is cloned and nothing is reported as cloned
	result, err = executor.Clone(context.Background(), second, nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.False(t, result.AlreadyExists)
	assert.Contains(t, result.Message, "already holds a clone of")

	content, err := os.ReadFile(filepath.Join(root, "project", "owner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(content))
}

func TestGitExecutor_RaceWithOtherRemote(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := gitmocks.NewMockClient(ctrl)
	root := t.TempDir()

	destination := filepath.Join(root, "project")
	gomock.InOrder(
		client.EXPECT().Open(gomock.Any(), destination).Return(nil, git.ErrRepositoryNotFound),
		client.EXPECT().Clone(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: %s", git.ErrRepositoryAlreadyExists, destination)),
		client.EXPECT().Open(gomock.Any(), destination).
			Return(&git.RepositoryInfo{Path: destination, RemoteURL: "https://github.com/other/project.git"}, nil),
	)

	executor := clone.NewGitExecutor(root, client)
	result, err := executor.Clone(context.Background(), remoteURL, nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Message, "https://github.com/other/project.git")
}

func TestGitExecutor_Canceled(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := gitmocks.NewMockClient(ctrl)
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, git.ErrRepositoryNotFound)
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *git.CloneConfig) (*git.RepositoryInfo, error) {
			cancel()
			return nil, fmt.Errorf("failed to clone repository: %w", ctx.Err())
		})

	executor := clone.NewGitExecutor(root, client, clone.WithRetry(3, time.Millisecond))
	result, err := executor.Clone(ctx, remoteURL, nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGitExecutor_AttemptTimeout(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := gitmocks.NewMockClient(ctrl)

	client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, git.ErrRepositoryNotFound)
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *git.CloneConfig) (*git.RepositoryInfo, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("failed to clone repository: %w", ctx.Err())
		})

	executor := clone.NewGitExecutor(t.TempDir(), client,
		clone.WithAttemptTimeout(10*time.Millisecond),
		clone.WithRetry(3, time.Millisecond),
	)
	result, err := executor.Clone(context.Background(), remoteURL, nil)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Message, context.DeadlineExceeded.Error())
}

func TestGitExecutor_DeadlineExceeded(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	client := gitmocks.NewMockClient(ctrl)

	client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, git.ErrRepositoryNotFound)
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *git.CloneConfig) (*git.RepositoryInfo, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("failed to clone repository: %w", ctx.Err())
		}).MaxTimes(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	executor := clone.NewGitExecutor(t.TempDir(), client, clone.WithRetry(3, time.Millisecond))
	result, err := executor.Clone(ctx, remoteURL, nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGitExecutor_InvalidDestination(t *testing.T) {
	t.Parallel()

	t.Run("no repository name", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		executor := clone.NewGitExecutor(t.TempDir(), gitmocks.NewMockClient(ctrl))

		result, err := executor.Clone(context.Background(), "https://", nil)
		require.NoError(t, err)
		assert.False(t, result.Succeeded)
		assert.Contains(t, result.Message, "cannot determine repository name")
	})

	t.Run("destination is not a repository", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		client := gitmocks.NewMockClient(ctrl)
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, "project"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "project", "keep.txt"), []byte("x"), 0o644))

		client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, git.ErrRepositoryNotFound)

		executor := clone.NewGitExecutor(root, client)
		result, err := executor.Clone(context.Background(), remoteURL, nil)
		require.NoError(t, err)
		assert.False(t, result.Succeeded)
		assert.Contains(t, result.Message, "is not a git repository")
		assert.FileExists(t, filepath.Join(root, "project", "keep.txt"))
	})
}

func TestCoordinatorWithGitExecutor(t *testing.T) {
	t.Parallel()
	remote := gittest.CreateRemoteRepo(t, "service", gittest.TestRepoConfig{})
	root := t.TempDir()
	client := git.NewDefaultGitClient()

	c := clone.New(
		clone.NewGitExecutor(root, client, clone.WithRetry(1, time.Millisecond)),
		repository.NewService(root, client),
	)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	ticket, err := c.QueueClone(context.Background(), remote)
	require.NoError(t, err)
	require.True(t, ticket.Enqueued)

	status := waitForTerminal(t, c, ticket.OperationID)
	assert.Equal(t, clone.StateCompleted, status.State)
	assert.DirExists(t, filepath.Join(root, "service", ".git"))

	// The inspector now reports the clone, so no operation is created
	require.Eventually(t, func() bool {
		ticket, err = c.QueueClone(context.Background(), remote)
		return err == nil && ticket.AlreadyCloned
	}, 5*time.Second, 5*time.Millisecond)
	assert.Empty(t, ticket.OperationID)
}
