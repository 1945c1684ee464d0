package handlers

import (
	"net/http"

	"goscrow/types"
)

func (a *API) GetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := a.Ledger.Owner(r.Context())
	if err != nil {
		responseError(w, err)
		return
	}
	res := &APIOwnerResponse{Owner: types.LowerHex(owner)}
	if account, ok := a.Orchestrator.Account(); ok {
		res.Account = types.LowerHex(account)
		res.IsOwner = account == owner
	}
	responseJSON(w, res, http.StatusOK)
}
