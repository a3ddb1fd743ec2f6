package git

import (
	"io"
)

// AuthConfig holds HTTP basic credentials used against the remote.
// Token based providers accept any non-empty username with the token as password.
type AuthConfig struct {
	Username string
	Password string
}

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone
	URL string

	// Path is the local directory the repository is cloned into
	Path string

	// Branch is the specific branch to clone (optional)
	Branch string

	// Depth limits the clone to the given number of commits. Zero clones the full history.
	Depth int

	// Auth holds optional credentials for private repositories
	Auth *AuthConfig

	// Progress receives the sideband progress output of the remote (optional)
	Progress io.Writer
}

// RepositoryInfo contains information about a local Git repository
type RepositoryInfo struct {
	// Path is the absolute path of the working tree
	Path string

	// RemoteURL is the first URL of the origin remote, empty when there is no origin
	RemoteURL string

	// Branch is the current branch name, empty on a detached HEAD
	Branch string

	// Head is the commit hash HEAD points at, empty for a repository without commits
	Head string
}

// SyncResult describes the outcome of a fetch, pull or push
type SyncResult struct {
	// UpToDate is true when the operation had nothing to transfer
	UpToDate bool

	// Head is the commit hash HEAD points at after the operation
	Head string
}
