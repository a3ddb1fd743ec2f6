package git

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

var (
	// ErrRepositoryNotFound is returned when a local path does not hold a git repository
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrRepositoryAlreadyExists is returned when cloning into a path that already holds a repository
	ErrRepositoryAlreadyExists = errors.New("repository already exists")
)

// permanentErrors are remote failures that no amount of retrying will fix
var permanentErrors = []error{
	ErrRepositoryAlreadyExists,
	ErrRepositoryNotFound,
	git.ErrRepositoryAlreadyExists,
	transport.ErrAuthenticationRequired,
	transport.ErrAuthorizationFailed,
	transport.ErrRepositoryNotFound,
	transport.ErrEmptyRemoteRepository,
	transport.ErrInvalidAuthMethod,
	context.Canceled,
	context.DeadlineExceeded,
}

// IsPermanent reports whether err is a failure that retrying cannot resolve
// (authentication, missing or empty remote, cancellation).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range permanentErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
