package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/toolhive-repo-server/internal/api/common"
	"github.com/stacklok/toolhive-repo-server/internal/filtering"
	"github.com/stacklok/toolhive-repo-server/internal/git"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
)

const (
	operationFetch = "fetch"
	operationPull  = "pull"
	operationPush  = "push"
)

// listRepositories handles GET /v1/repositories
//
// @Summary		List local repositories
// @Tags		repositories
// @Produce		json
// @Param		include	query		[]string	false	"Glob patterns a name must match"
// @Param		exclude	query		[]string	false	"Glob patterns that drop a name"
// @Success		200		{object}	RepositoryListResponse
// @Failure		400		{object}	common.ErrorResponse
// @Failure		500		{object}	common.ErrorResponse
// @Router		/v1/repositories [get]
func (routes *Routes) listRepositories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := filtering.NewNameFilter(query["include"], query["exclude"])
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	repos, err := routes.repos.ListRepositories(r.Context())
	if err != nil {
		slog.Error("Failed to list repositories", "error", err)
		common.WriteErrorResponse(w, "Failed to list repositories", http.StatusInternalServerError)
		return
	}

	selected := make([]repository.Repository, 0, len(repos))
	for _, repo := range repos {
		if filter.ShouldInclude(repo.Name) {
			selected = append(selected, repo)
		}
	}
	common.WriteJSONResponse(w, RepositoryListResponse{Repositories: selected}, http.StatusOK)
}

// getRepository handles GET /v1/repositories/{name}
//
// @Summary		Get a local repository
// @Tags		repositories
// @Produce		json
// @Param		name	path		string	true	"Repository directory name"
// @Success		200		{object}	repository.Repository
// @Failure		400		{object}	common.ErrorResponse
// @Failure		404		{object}	common.ErrorResponse
// @Router		/v1/repositories/{name} [get]
func (routes *Routes) getRepository(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	repo, err := routes.repos.Get(r.Context(), name)
	if err != nil {
		writeRepositoryError(w, name, "get", err)
		return
	}
	common.WriteJSONResponse(w, repo, http.StatusOK)
}

// syncRepository handles POST /v1/repositories/{name}/fetch, /pull and /push
//
// @Summary		Synchronise a local repository with its origin
// @Tags		repositories
// @Produce		json
// @Param		name	path		string	true	"Repository directory name"
// @Success		200		{object}	SyncResponse
// @Failure		404		{object}	common.ErrorResponse
// @Failure		502		{object}	common.ErrorResponse
// @Router		/v1/repositories/{name}/fetch [post]
// @Router		/v1/repositories/{name}/pull [post]
// @Router		/v1/repositories/{name}/push [post]
func (routes *Routes) syncRepository(operation string) http.HandlerFunc {
	var sync func(ctx context.Context, name string) (*git.SyncResult, error)
	switch operation {
	case operationFetch:
		sync = routes.repos.Fetch
	case operationPull:
		sync = routes.repos.Pull
	default:
		sync = routes.repos.Push
	}

	return func(w http.ResponseWriter, r *http.Request) {
		name, err := common.GetAndValidateURLParam(r, "name")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := sync(r.Context(), name)
		if err != nil {
			writeRepositoryError(w, name, operation, err)
			return
		}

		common.WriteJSONResponse(w, SyncResponse{
			Repository: name,
			Operation:  operation,
			UpToDate:   result.UpToDate,
			Head:       result.Head,
		}, http.StatusOK)
	}
}

// writeRepositoryError maps repository service errors to HTTP responses
func writeRepositoryError(w http.ResponseWriter, name, operation string, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidRepositoryName):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrRepositoryNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case operation == "get":
		slog.Error("Failed to inspect repository", "repository", name, "error", err)
		common.WriteErrorResponse(w, "Failed to inspect repository", http.StatusInternalServerError)
	default:
		slog.Error("Git operation failed", "repository", name, "operation", operation, "error", err)
		common.WriteErrorResponse(w, err.Error(), http.StatusBadGateway)
	}
}
