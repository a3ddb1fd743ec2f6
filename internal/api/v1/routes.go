// Package v1 provides the REST API handlers for clone operations and local repositories.
package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-repo-server/internal/clone"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
)

// maxRequestBodyBytes caps the size of JSON request bodies
const maxRequestBodyBytes = 1 << 20

// Routes holds dependencies for the v1 handlers
type Routes struct {
	coordinator clone.Coordinator
	repos       repository.Service
}

// NewRoutes creates a new Routes instance with the provided services
func NewRoutes(coordinator clone.Coordinator, repos repository.Service) *Routes {
	return &Routes{
		coordinator: coordinator,
		repos:       repos,
	}
}

// Router creates a new router for the v1 API
func Router(coordinator clone.Coordinator, repos repository.Service) http.Handler {
	routes := NewRoutes(coordinator, repos)

	r := chi.NewRouter()

	r.Route("/clone", func(r chi.Router) {
		r.Post("/", routes.queueClone)
		r.Get("/", routes.listClones)
		r.Get("/{operation_id}", routes.getClone)
		r.Delete("/{operation_id}", routes.cancelClone)
	})

	r.Route("/repositories", func(r chi.Router) {
		r.Get("/", routes.listRepositories)
		r.Get("/{name}", routes.getRepository)
		r.Post("/{name}/fetch", routes.syncRepository(operationFetch))
		r.Post("/{name}/pull", routes.syncRepository(operationPull))
		r.Post("/{name}/push", routes.syncRepository(operationPush))
	})

	return r
}
