package handlers

import (
	"net/http"

	"goscrow/EVMRPC"
	"goscrow/types"

	"github.com/go-chi/chi"
)

// GetBalances serves the escrow-held balances of an address. The polled
// account is answered from the snapshot, anything else is read live.
func (a *API) GetBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := EVMRPC.ParseAddress(chi.URLParam(r, "address"))
	if !ok {
		responseError(w, types.InvalidInput("address", "%q is not an address", chi.URLParam(r, "address")))
		return
	}

	snap := a.Repository.BalancesSnapshot()
	if !snap.FetchedAt.IsZero() && snap.Account == addr {
		responseJSON(w, snap.User, http.StatusOK)
		return
	}

	balances, err := a.Repository.UserBalances(r.Context(), addr)
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, balances, http.StatusOK)
}

// GetEscrowBalances serves what the escrow contract holds per active token.
func (a *API) GetEscrowBalances(w http.ResponseWriter, r *http.Request) {
	snap := a.Repository.BalancesSnapshot()
	if !snap.FetchedAt.IsZero() {
		responseJSON(w, snap.Escrow, http.StatusOK)
		return
	}

	balances, err := a.Repository.EscrowBalances(r.Context())
	if err != nil {
		responseError(w, err)
		return
	}
	responseJSON(w, balances, http.StatusOK)
}
