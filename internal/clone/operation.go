package clone

import (
	"context"
	"strings"
	"sync"
	"time"
)

// operation is the mutable record behind a Status. All updates go through
// progress and finish, which ignore changes once a terminal state is reached.
type operation struct {
	id     string
	cancel context.CancelFunc

	// release frees the operation's dedup key. It runs inside finish, before
	// the terminal state can be observed.
	release func()

	mu     sync.Mutex
	status Status
}

func (o *operation) snapshot() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// progress moves the operation to Running with the reported values.
// Blank stage or details keep the previously recorded text.
func (o *operation) progress(p Progress, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.State.IsTerminal() {
		return
	}

	o.status.State = StateRunning
	o.status.Percentage = clampPercentage(p.Percentage, o.status.Percentage)
	if strings.TrimSpace(p.Stage) != "" {
		o.status.Stage = p.Stage
	}
	if strings.TrimSpace(p.Details) != "" {
		o.status.Message = p.Details
	}
	o.status.LastUpdated = now.UTC()
}

// finish records a terminal state and releases the dedup key. Only the first call has an effect.
func (o *operation) finish(state State, stage, message string, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.State.IsTerminal() {
		return
	}

	o.status.State = state
	o.status.Percentage = 100
	o.status.Stage = stage
	o.status.Message = message
	o.status.LastUpdated = now.UTC()

	if o.release != nil {
		o.release()
	}
}

// clampPercentage bounds reported to 0-100; negative reports keep the previous value
func clampPercentage(reported, previous int) int {
	switch {
	case reported < 0:
		return previous
	case reported > 100:
		return 100
	default:
		return reported
	}
}
