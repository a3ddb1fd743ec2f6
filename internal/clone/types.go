package clone

import (
	"context"
	"time"
)

// State is the lifecycle state of a clone operation
type State string

const (
	// StateQueued means the operation is registered but its clone has not reported progress yet
	StateQueued State = "Queued"
	// StateRunning means the clone is in progress
	StateRunning State = "Running"
	// StateCompleted means the clone finished successfully
	StateCompleted State = "Completed"
	// StateFailed means the clone finished with an error
	StateFailed State = "Failed"
	// StateCanceled means the clone was canceled before it finished
	StateCanceled State = "Canceled"
)

// IsTerminal reports whether no further transitions are allowed from s
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	case StateQueued, StateRunning:
		return false
	}
	return false
}

// Status is a point-in-time snapshot of a clone operation
type Status struct {
	OperationID   string    `json:"operation_id"`
	RepositoryURL string    `json:"repository_url"`
	State         State     `json:"state"`
	Percentage    int       `json:"percentage"`
	Stage         string    `json:"stage"`
	Message       string    `json:"message"`
	LastUpdated   time.Time `json:"last_updated_utc"`
}

// Ticket is the synchronous answer to a clone request
type Ticket struct {
	// OperationID references the operation tracking the clone, empty when none exists
	OperationID string

	// AlreadyCloned is true when the repository is already present locally
	AlreadyCloned bool

	// Enqueued is true when this request launched a new operation
	Enqueued bool

	// Status is a snapshot of the referenced operation, nil when OperationID is empty
	Status *Status
}

// Progress is one progress report from a running clone
type Progress struct {
	Percentage int
	Stage      string
	Details    string
}

// ProgressFunc receives progress reports while a clone runs
type ProgressFunc func(Progress)

// Result is the outcome of a clone reported by an Executor
type Result struct {
	Succeeded     bool
	AlreadyExists bool
	Message       string
}

// Executor performs the actual clone of one repository
type Executor interface {
	// Clone clones repositoryURL, reporting progress zero or more times before it returns.
	// A canceled ctx is reported as an error wrapping context.Canceled.
	Clone(ctx context.Context, repositoryURL string, progress ProgressFunc) (*Result, error)
}
