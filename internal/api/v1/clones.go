package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/toolhive-repo-server/internal/api/common"
	"github.com/stacklok/toolhive-repo-server/internal/clone"
)

// queueClone handles POST /v1/clone
//
// @Summary		Queue a repository clone
// @Description	Start cloning a remote unless it is already cloned or a clone of it is in flight
// @Tags		clones
// @Accept		json
// @Produce		json
// @Param		request	body		CloneRequest		true	"Repository to clone"
// @Success		200		{object}	CloneResponse		"Repository already cloned"
// @Success		202		{object}	CloneResponse		"Clone operation tracked"
// @Failure		400		{object}	common.ErrorResponse
// @Failure		503		{object}	common.ErrorResponse
// @Router		/v1/clone [post]
func (routes *Routes) queueClone(w http.ResponseWriter, r *http.Request) {
	var req CloneRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := routes.coordinator.QueueClone(r.Context(), req.RepositoryURL)
	if err != nil {
		switch {
		case errors.Is(err, clone.ErrInvalidRepositoryURL):
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, clone.ErrShuttingDown):
			common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		default:
			slog.Error("Failed to queue clone", "repository_url", req.RepositoryURL, "error", err)
			common.WriteErrorResponse(w, "Failed to queue clone", http.StatusInternalServerError)
		}
		return
	}

	statusCode := http.StatusAccepted
	if ticket.AlreadyCloned {
		statusCode = http.StatusOK
	}
	common.WriteJSONResponse(w, newCloneResponse(ticket), statusCode)
}

// listClones handles GET /v1/clone
//
// @Summary		List clone operations
// @Tags		clones
// @Produce		json
// @Success		200	{object}	CloneListResponse
// @Router		/v1/clone [get]
func (routes *Routes) listClones(w http.ResponseWriter, _ *http.Request) {
	clones := routes.coordinator.ListClones()
	if clones == nil {
		clones = []clone.Status{}
	}
	common.WriteJSONResponse(w, CloneListResponse{Clones: clones}, http.StatusOK)
}

// getClone handles GET /v1/clone/{operation_id}
//
// @Summary		Get clone operation status
// @Tags		clones
// @Produce		json
// @Param		operation_id	path		string	true	"Operation ID"
// @Success		200				{object}	clone.Status
// @Failure		404				{object}	common.ErrorResponse
// @Router		/v1/clone/{operation_id} [get]
func (routes *Routes) getClone(w http.ResponseWriter, r *http.Request) {
	operationID, err := common.GetAndValidateURLParam(r, "operation_id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	status, ok := routes.coordinator.TryGetStatus(operationID)
	if !ok {
		common.WriteErrorResponse(w, clone.ErrOperationNotFound.Error(), http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, status, http.StatusOK)
}

// cancelClone handles DELETE /v1/clone/{operation_id}
//
// @Summary		Cancel a clone operation
// @Tags		clones
// @Produce		json
// @Param		operation_id	path		string	true	"Operation ID"
// @Success		202				{object}	clone.Status
// @Failure		404				{object}	common.ErrorResponse
// @Failure		409				{object}	common.ErrorResponse
// @Router		/v1/clone/{operation_id} [delete]
func (routes *Routes) cancelClone(w http.ResponseWriter, r *http.Request) {
	operationID, err := common.GetAndValidateURLParam(r, "operation_id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := routes.coordinator.Cancel(operationID); err != nil {
		switch {
		case errors.Is(err, clone.ErrOperationNotFound):
			common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, clone.ErrOperationFinished):
			common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
		default:
			slog.Error("Failed to cancel clone", "operation_id", operationID, "error", err)
			common.WriteErrorResponse(w, "Failed to cancel clone", http.StatusInternalServerError)
		}
		return
	}

	status, ok := routes.coordinator.TryGetStatus(operationID)
	if !ok {
		common.WriteErrorResponse(w, clone.ErrOperationNotFound.Error(), http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, status, http.StatusAccepted)
}
