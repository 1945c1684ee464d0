package handlers

import (
	"net/http"
	"strings"

	"goscrow/EVMRPC"
	"goscrow/orchestrator"
	"goscrow/types"

	"github.com/go-chi/chi"
)

// GetOperations serves the operations snapshot, newest first. Optional
// filters: ?status=open|completed|cancelled and ?maker=<address>.
func (a *API) GetOperations(w http.ResponseWriter, r *http.Request) {
	snap := a.Repository.Snapshot()

	status := strings.ToLower(r.URL.Query().Get("status"))
	makerParam := r.URL.Query().Get("maker")
	maker, ok := EVMRPC.ParseAddress(makerParam)
	if makerParam != "" && !ok {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Field:   "maker",
			Message: "invalid maker address",
		}, http.StatusBadRequest)
		return
	}

	ops := make([]types.Operation, 0, len(snap.Operations))
	for _, op := range snap.Operations {
		if status != "" && strings.ToLower(op.Status.String()) != status {
			continue
		}
		if makerParam != "" && op.Maker != maker {
			continue
		}
		ops = append(ops, op)
	}
	snap.Operations = ops
	responseJSON(w, snap, http.StatusOK)
}

// GetOperation answers from the snapshot, falling back to a ledger read for
// operations created since the last refresh.
func (a *API) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, err := orchestrator.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		responseError(w, err)
		return
	}
	if op, ok := a.Repository.Find(id.String()); ok {
		responseJSON(w, op, http.StatusOK)
		return
	}
	op, err := a.Ledger.Operation(r.Context(), id)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, op, http.StatusOK)
}

func (a *API) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req CreateOperationRequest
	if !readJSON(w, r, &req) {
		return
	}
	wf, err := a.Orchestrator.CreateOperation(r.Context(), req)
	responseWorkflow(w, wf, err)
}

func (a *API) CompleteOperation(w http.ResponseWriter, r *http.Request) {
	id, err := orchestrator.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		responseError(w, err)
		return
	}
	wf, err := a.Orchestrator.CompleteOperation(r.Context(), id)
	responseWorkflow(w, wf, err)
}

func (a *API) CancelOperation(w http.ResponseWriter, r *http.Request) {
	id, err := orchestrator.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		responseError(w, err)
		return
	}
	wf, err := a.Orchestrator.CancelOperation(r.Context(), id)
	responseWorkflow(w, wf, err)
}
