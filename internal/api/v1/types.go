package v1

import (
	"github.com/stacklok/toolhive-repo-server/internal/clone"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
)

// CloneRequest is the body of POST /v1/clone
type CloneRequest struct {
	RepositoryURL string `json:"repository_url" example:"https://github.com/stacklok/toolhive.git"`
}

// CloneResponse is the answer to a clone request
type CloneResponse struct {
	OperationID   string        `json:"operation_id"`
	AlreadyCloned bool          `json:"already_cloned"`
	Enqueued      bool          `json:"enqueued"`
	Status        *clone.Status `json:"status"`
}

// CloneListResponse lists every tracked clone operation
type CloneListResponse struct {
	Clones []clone.Status `json:"clones"`
}

// RepositoryListResponse lists the local clones
type RepositoryListResponse struct {
	Repositories []repository.Repository `json:"repositories"`
}

// SyncResponse describes the outcome of a fetch, pull or push
type SyncResponse struct {
	Repository string `json:"repository"`
	Operation  string `json:"operation" example:"pull"`
	UpToDate   bool   `json:"up_to_date"`
	Head       string `json:"head,omitempty"`
}

func newCloneResponse(ticket clone.Ticket) CloneResponse {
	return CloneResponse{
		OperationID:   ticket.OperationID,
		AlreadyCloned: ticket.AlreadyCloned,
		Enqueued:      ticket.Enqueued,
		Status:        ticket.Status,
	}
}
