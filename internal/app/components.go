package app

import (
	"github.com/stacklok/toolhive-repo-server/internal/clone"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
	"github.com/stacklok/toolhive-repo-server/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// CloneCoordinator runs and tracks background clones
	CloneCoordinator clone.Coordinator

	// RepositoryService inspects and synchronises local clones
	RepositoryService repository.Service

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
