package handlers

import (
	"context"
	"math/big"

	"goscrow/EVMRPC"
	"goscrow/orchestrator"
	"goscrow/repository"
	"goscrow/tokens"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/common"
)

// Poller is the polling scheduler as seen by the API.
type Poller interface {
	Pause() error
	Resume() error
	Status() string
}

// Orchestrator runs the write workflows.
type Orchestrator interface {
	CreateOperation(ctx context.Context, req orchestrator.CreateRequest) (*orchestrator.Workflow, error)
	CompleteOperation(ctx context.Context, id *big.Int) (*orchestrator.Workflow, error)
	CancelOperation(ctx context.Context, id *big.Int) (*orchestrator.Workflow, error)
	AddToken(ctx context.Context, address string) (*orchestrator.Workflow, error)
	Account() (common.Address, bool)
	Trail() *orchestrator.Trail
}

// HealthChecker reports every ledger endpoint.
type HealthChecker interface {
	Health() []EVMRPC.EndpointHealth
}

// Pinger is an optional dependency that should answer when configured.
type Pinger interface {
	Ping() error
}

// API holds everything the handlers serve from. Components are passed in
// explicitly; no handler reaches for a global client.
type API struct {
	Ledger       EVMRPC.Reader
	Repository   *repository.Repository
	Metadata     *tokens.MetadataCache
	Orchestrator Orchestrator
	Poller       Poller
	Health       HealthChecker
	Redis        Pinger // nil when the mirror is disabled
}

func (a *API) findToken(addr common.Address) (types.AllowedToken, bool) {
	for _, t := range a.Repository.TokensSnapshot().Tokens {
		if t.Address == addr {
			return t, true
		}
	}
	return types.AllowedToken{}, false
}
