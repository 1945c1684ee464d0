package handlers

import (
	"net/http"

	"goscrow/EVMRPC"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
)

func (a *API) tokenResponse(r *http.Request, t types.AllowedToken) APITokenResponse {
	md := a.Metadata.Get(r.Context(), t.Address)
	addr := types.LowerHex(t.Address)
	return APITokenResponse{
		Address:  addr,
		Active:   t.Active,
		Label:    md.Label(addr),
		Metadata: md,
	}
}

// GetTokens serves the whitelist snapshot with metadata; ?active=true keeps
// only active tokens.
func (a *API) GetTokens(w http.ResponseWriter, r *http.Request) {
	list := a.Repository.TokensSnapshot().Tokens
	if r.URL.Query().Get("active") == "true" {
		list = a.Repository.ActiveTokens()
	}

	addrs := make([]common.Address, 0, len(list))
	for _, t := range list {
		addrs = append(addrs, t.Address)
	}
	a.Metadata.Prefetch(r.Context(), addrs)

	res := make([]APITokenResponse, 0, len(list))
	for _, t := range list {
		res = append(res, a.tokenResponse(r, t))
	}
	responseJSON(w, res, http.StatusOK)
}

// GetToken describes any address; Active is false for tokens outside the
// whitelist.
func (a *API) GetToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := EVMRPC.ParseAddress(chi.URLParam(r, "address"))
	if !ok {
		responseError(w, types.InvalidInput("address", "%q is not an address", chi.URLParam(r, "address")))
		return
	}
	t, found := a.findToken(addr)
	if !found {
		t = types.AllowedToken{Address: addr}
	}
	responseJSON(w, a.tokenResponse(r, t), http.StatusOK)
}

func (a *API) AddToken(w http.ResponseWriter, r *http.Request) {
	var req AddTokenRequest
	if !readJSON(w, r, &req) {
		return
	}
	wf, err := a.Orchestrator.AddToken(r.Context(), req.Address)
	responseWorkflow(w, wf, err)
}
