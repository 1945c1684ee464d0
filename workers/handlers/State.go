package handlers

import (
	"net/http"

	"goscrow/types"
)

func (a *API) State(w http.ResponseWriter, r *http.Request) {
	ops := a.Repository.Snapshot()
	res := &APIStateResponse{
		Status:     "ok",
		Polling:    a.Poller.Status(),
		Escrow:     types.LowerHex(a.Ledger.EscrowAddress()),
		Operations: len(ops.Operations),
		Tokens:     len(a.Repository.TokensSnapshot().Tokens),
		Metadata:   a.Metadata.Len(),
		FetchedAt:  ops.FetchedAt,
	}
	if account, ok := a.Orchestrator.Account(); ok {
		res.Account = types.LowerHex(account)
	}
	responseJSON(w, res, http.StatusOK)
}

func (a *API) PausePolling(w http.ResponseWriter, r *http.Request) {
	if err := a.Poller.Pause(); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusConflict)
		return
	}
	responseJSON(w, &APIResponse{Status: "ok", Message: a.Poller.Status()}, http.StatusOK)
}

func (a *API) ResumePolling(w http.ResponseWriter, r *http.Request) {
	if err := a.Poller.Resume(); err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusConflict)
		return
	}
	responseJSON(w, &APIResponse{Status: "ok", Message: a.Poller.Status()}, http.StatusOK)
}
