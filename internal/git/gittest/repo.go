// Package gittest creates throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
)

// TestRepoConfig contains configuration for creating a test repository
type TestRepoConfig struct {
	Files  map[string]string // Map of filename to content
	Author *object.Signature // Author for commits (uses default if nil)
}

// CreateTestRepo creates a Git repository under a test temp directory with the
// given files committed as a single commit, and returns its path.
func CreateTestRepo(t *testing.T, config TestRepoConfig) string {
	t.Helper()

	repoDir := t.TempDir()
	if _, err := git.PlainInit(repoDir, false); err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}

	if len(config.Files) == 0 {
		config.Files = map[string]string{"README.md": "# test\n"}
	}
	CommitFiles(t, repoDir, config, "Initial commit")
	return repoDir
}

// CommitFiles writes files into the working tree at repoDir and commits them
func CommitFiles(t *testing.T, repoDir string, config TestRepoConfig, message string) {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	author := config.Author
	if author == nil {
		author = &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		}
	}

	for filename, content := range config.Files {
		filePath := filepath.Join(repoDir, filename)
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", filename, err)
		}
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", filename, err)
		}
		if _, err := workTree.Add(filename); err != nil {
			t.Fatalf("Failed to add file %s: %v", filename, err)
		}
	}

	if _, err := workTree.Commit(message, &git.CommitOptions{Author: author}); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
}

// CreateBareRepo creates an empty bare repository, suitable as a push target
func CreateBareRepo(t *testing.T) string {
	t.Helper()

	repoDir := t.TempDir()
	if _, err := git.PlainInit(repoDir, true); err != nil {
		t.Fatalf("Failed to init bare repository: %v", err)
	}
	return repoDir
}

// InitWithRemote creates a repository at dir (which must not exist yet) whose
// origin remote points at remoteURL, without fetching anything.
func InitWithRemote(t *testing.T, dir, remoteURL string) {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}
	if remoteURL == "" {
		return
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})
	if err != nil {
		t.Fatalf("Failed to create origin remote: %v", err)
	}
}

// CreateRemoteRepo creates a bare repository named <name>.git holding one
// commit with the given files. The returned path is usable as a clone URL.
func CreateRemoteRepo(t *testing.T, name string, config TestRepoConfig) string {
	t.Helper()

	workDir := CreateTestRepo(t, config)
	bareDir := filepath.Join(t.TempDir(), name+".git")

	_, err := git.PlainClone(bareDir, true, &git.CloneOptions{
		URL: filepath.Join(workDir, ".git"),
	})
	if err != nil {
		t.Fatalf("Failed to create bare repository: %v", err)
	}
	return bareDir
}

var installOnce sync.Once

// InstallInProcessTransport serves file:// and plain path remotes with go-git's
// in-process server, so tests do not depend on git binaries being installed.
// The in-process loader only serves bare repositories and .git directories.
func InstallInProcessTransport() {
	installOnce.Do(func() {
		client.InstallProtocol("file", server.DefaultServer)
	})
}
