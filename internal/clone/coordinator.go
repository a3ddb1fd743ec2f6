// Package clone coordinates asynchronous repository clones: it deduplicates
// concurrent requests for the same remote, runs each clone on a background
// task and keeps per-operation status available for polling.
package clone

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-repo-server/internal/otel"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
	"github.com/stacklok/toolhive-repo-server/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks -source=coordinator.go Coordinator,Inspector
//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks -source=types.go Executor

const (
	// TracerName is the name used for the clone coordinator tracer
	TracerName = "github.com/stacklok/toolhive-repo-server/clone"

	// CanceledMessage is the message recorded on every canceled operation
	CanceledMessage = "Repository clone was canceled."

	// FailedMessage is recorded when a failed clone reports no message of its own
	FailedMessage = "Repository clone failed."

	queuedStage    = "Queued"
	completedStage = "Completed"
	failedStage    = "Failed"
	canceledStage  = "Canceled"
)

var (
	// ErrInvalidRepositoryURL is returned when a clone is requested for a blank URL
	ErrInvalidRepositoryURL = errors.New("repository URL is required")

	// ErrOperationNotFound is returned for operation ids the coordinator does not track
	ErrOperationNotFound = errors.New("clone operation not found")

	// ErrOperationFinished is returned when canceling an operation that already finished
	ErrOperationFinished = errors.New("clone operation already finished")

	// ErrShuttingDown is returned when a clone is requested after Shutdown
	ErrShuttingDown = errors.New("clone coordinator is shutting down")
)

// Inspector reports the repositories that are already cloned locally
type Inspector interface {
	ListRepositories(ctx context.Context) ([]repository.Repository, error)
}

// Coordinator tracks clone operations.
// At most one operation is in flight per normalized repository URL.
type Coordinator interface {
	// QueueClone starts a clone of repositoryURL unless it is already cloned or in flight.
	// It never waits for the clone itself.
	QueueClone(ctx context.Context, repositoryURL string) (Ticket, error)

	// TryGetStatus returns a snapshot of the operation with the given id
	TryGetStatus(operationID string) (Status, bool)

	// ListClones returns snapshots of every tracked operation, finished ones included
	ListClones() []Status

	// Cancel signals the operation's clone to stop
	Cancel(operationID string) error

	// Shutdown cancels every in-flight clone and waits for the background tasks to exit
	Shutdown(ctx context.Context) error
}

// Option configures the coordinator
type Option func(*coordinator)

// WithCloneMetrics sets the metrics recorded for clone operations
func WithCloneMetrics(metrics *telemetry.CloneMetrics) Option {
	return func(c *coordinator) {
		c.metrics = metrics
	}
}

// WithTracerProvider sets the tracer provider used for background clone spans
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *coordinator) {
		if provider != nil {
			c.tracer = provider.Tracer(TracerName)
		}
	}
}

// WithTimeout bounds how long a single clone operation may run. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *coordinator) {
		c.timeout = timeout
	}
}

// WithIDGenerator replaces the operation id generator
func WithIDGenerator(newID func() string) Option {
	return func(c *coordinator) {
		c.newID = newID
	}
}

// WithClock replaces the clock used for status timestamps
func WithClock(now func() time.Time) Option {
	return func(c *coordinator) {
		c.now = now
	}
}

type coordinator struct {
	executor  Executor
	inspector Inspector

	// operations maps operation id to *operation
	operations sync.Map
	// inFlight maps normalized repository URL to the id of its running operation
	inFlight sync.Map

	baseCtx    context.Context
	cancelBase context.CancelFunc

	// lifecycle guards closed against tasks launched concurrently with Shutdown
	lifecycle sync.RWMutex
	closed    bool
	tasks     sync.WaitGroup

	timeout time.Duration
	newID   func() string
	now     func() time.Time
	metrics *telemetry.CloneMetrics
	tracer  trace.Tracer
}

// New creates a coordinator running clones through executor and consulting inspector
// for repositories that are already present.
func New(executor Executor, inspector Inspector, opts ...Option) Coordinator {
	baseCtx, cancel := context.WithCancel(context.Background())
	c := &coordinator{
		executor:   executor,
		inspector:  inspector,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		newID:      uuid.NewString,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// QueueClone starts a clone of repositoryURL unless it is already cloned or in flight
func (c *coordinator) QueueClone(ctx context.Context, repositoryURL string) (Ticket, error) {
	repositoryURL = strings.TrimSpace(repositoryURL)
	if repositoryURL == "" {
		return Ticket{}, fmt.Errorf("failed to queue clone: %w", ErrInvalidRepositoryURL)
	}

	key := NormalizeURL(repositoryURL)

	if existingID, ok := c.inFlight.Load(key); ok {
		slog.Debug("Clone already in flight", "repository_url", repositoryURL, "operation_id", existingID)
		return c.ticketFor(existingID.(string)), nil
	}

	if c.isCloned(ctx, key) {
		slog.Info("Repository already cloned", "repository_url", repositoryURL)
		return Ticket{AlreadyCloned: true}, nil
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closed {
		return Ticket{}, ErrShuttingDown
	}

	id := c.newID()
	taskCtx, cancel := c.taskContext()
	op := &operation{
		id:     id,
		cancel: cancel,
		release: func() {
			c.inFlight.CompareAndDelete(key, id)
		},
		status: Status{
			OperationID:   id,
			RepositoryURL: repositoryURL,
			State:         StateQueued,
			Percentage:    0,
			Stage:         queuedStage,
			LastUpdated:   c.now().UTC(),
		},
	}
	c.operations.Store(id, op)

	if winnerID, loaded := c.inFlight.LoadOrStore(key, id); loaded {
		// Another request claimed the key between the lookup and now
		c.operations.Delete(id)
		cancel()
		return c.ticketFor(winnerID.(string)), nil
	}

	slog.Info("Clone queued", "operation_id", id, "repository_url", repositoryURL)
	c.metrics.RecordCloneQueued(ctx)

	snapshot := op.snapshot()
	c.tasks.Add(1)
	go c.run(taskCtx, op)

	return Ticket{
		OperationID: id,
		Enqueued:    true,
		Status:      &snapshot,
	}, nil
}

// TryGetStatus returns a snapshot of the operation with the given id
func (c *coordinator) TryGetStatus(operationID string) (Status, bool) {
	op, ok := c.lookup(operationID)
	if !ok {
		return Status{}, false
	}
	return op.snapshot(), true
}

// ListClones returns snapshots of every tracked operation ordered by last update, then id
func (c *coordinator) ListClones() []Status {
	statuses := []Status{}
	c.operations.Range(func(_, value any) bool {
		statuses = append(statuses, value.(*operation).snapshot())
		return true
	})

	slices.SortFunc(statuses, func(a, b Status) int {
		if byTime := a.LastUpdated.Compare(b.LastUpdated); byTime != 0 {
			return byTime
		}
		return cmp.Compare(a.OperationID, b.OperationID)
	})
	return statuses
}

// Cancel signals the operation's clone to stop. The background task records the
// Canceled state once the clone returns.
func (c *coordinator) Cancel(operationID string) error {
	op, ok := c.lookup(operationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	if op.snapshot().State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrOperationFinished, operationID)
	}

	slog.Info("Canceling clone", "operation_id", operationID)
	op.cancel()
	return nil
}

// Shutdown cancels every in-flight clone and waits for the background tasks to exit
func (c *coordinator) Shutdown(ctx context.Context) error {
	c.lifecycle.Lock()
	c.closed = true
	c.lifecycle.Unlock()

	slog.Info("Stopping clone coordinator")
	c.cancelBase()

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Clone coordinator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for clone tasks: %w", ctx.Err())
	}
}

// run executes the clone of op and records its final state
func (c *coordinator) run(ctx context.Context, op *operation) {
	defer c.tasks.Done()
	defer op.cancel()

	startTime := c.now()
	repositoryURL := op.snapshot().RepositoryURL

	ctx, span := otel.StartSpan(ctx, c.tracer, "clone.run",
		trace.WithAttributes(
			otel.AttrOperationID.String(op.id),
			otel.AttrRepositoryURL.String(repositoryURL),
		),
	)
	defer span.End()

	defer func() {
		final := op.snapshot()
		c.metrics.RecordCloneFinished(context.WithoutCancel(ctx), string(final.State), c.now().Sub(startTime))
		span.SetAttributes(otel.AttrCloneState.String(string(final.State)))
		if final.State != StateCompleted {
			span.SetStatus(codes.Error, string(final.State))
		}
		slog.Info("Clone finished",
			"operation_id", op.id,
			"repository_url", repositoryURL,
			"state", final.State,
			"duration", c.now().Sub(startTime))
	}()

	// Registered last so a panic is turned into a terminal state before the deferred bookkeeping above
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Clone panicked", "operation_id", op.id, "panic", r)
			op.finish(StateFailed, failedStage, fmt.Sprintf("Repository clone failed: %v", r), c.now())
		}
	}()

	result, err := c.executor.Clone(ctx, repositoryURL, func(p Progress) {
		op.progress(p, c.now())
	})

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)):
		op.finish(StateCanceled, canceledStage, CanceledMessage, c.now())
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		otel.RecordError(span, err)
		op.finish(StateFailed, failedStage, fmt.Sprintf("Repository clone timed out after %s.", c.timeout), c.now())
	case err != nil:
		otel.RecordError(span, err)
		slog.Warn("Clone failed", "operation_id", op.id, "error", err)
		op.finish(StateFailed, failedStage, failureMessage(err.Error()), c.now())
	case result == nil:
		op.finish(StateFailed, failedStage, FailedMessage, c.now())
	case !result.Succeeded:
		op.finish(StateFailed, failedStage, failureMessage(result.Message), c.now())
	default:
		message := ""
		if result.AlreadyExists {
			message = result.Message
		}
		op.finish(StateCompleted, completedStage, message, c.now())
	}
}

// failureMessage returns message, or FailedMessage when it is blank
func failureMessage(message string) string {
	if strings.TrimSpace(message) == "" {
		return FailedMessage
	}
	return message
}

// isCloned reports whether a local repository's origin normalizes to key.
// Inspection failures are logged and treated as not cloned.
func (c *coordinator) isCloned(ctx context.Context, key string) bool {
	if c.inspector == nil {
		return false
	}

	repos, err := c.inspector.ListRepositories(ctx)
	if err != nil {
		slog.Warn("Failed to list local repositories", "error", err)
		return false
	}

	return slices.ContainsFunc(repos, func(repo repository.Repository) bool {
		return repo.RemoteURL != "" && NormalizeURL(repo.RemoteURL) == key
	})
}

func (c *coordinator) taskContext() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(c.baseCtx, c.timeout)
	}
	return context.WithCancel(c.baseCtx)
}

func (c *coordinator) ticketFor(operationID string) Ticket {
	ticket := Ticket{OperationID: operationID}
	if op, ok := c.lookup(operationID); ok {
		snapshot := op.snapshot()
		ticket.Status = &snapshot
	}
	return ticket
}

func (c *coordinator) lookup(operationID string) (*operation, bool) {
	value, ok := c.operations.Load(operationID)
	if !ok {
		return nil, false
	}
	return value.(*operation), true
}
