package handlers

import (
	"time"

	"goscrow/EVMRPC"
	"goscrow/orchestrator"
	"goscrow/types"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	// taxonomy name of the error, e.g. "invalid input"
	Kind string `json:"kind,omitempty"`
}

type APIWorkflowResponse struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Field    string                 `json:"field,omitempty"`
	Kind     string                 `json:"kind,omitempty"`
	Workflow *orchestrator.Workflow `json:"workflow"`
}

type APIStateResponse struct {
	Status     string    `json:"status"`
	Polling    string    `json:"polling"`
	Escrow     string    `json:"escrow"`
	Account    string    `json:"account,omitempty"`
	Operations int       `json:"operations"`
	Tokens     int       `json:"tokens"`
	Metadata   int       `json:"metadataCached"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

type APIHealthResponse struct {
	Status    string                  `json:"status"`
	Endpoints []EVMRPC.EndpointHealth `json:"endpoints"`
	Redis     string                  `json:"redis,omitempty"`
}

type APITokenResponse struct {
	Address  string               `json:"address"`
	Active   bool                 `json:"active"`
	Label    string               `json:"label"`
	Metadata types.MetadataResult `json:"metadata"`
}

type APIOwnerResponse struct {
	Owner   string `json:"owner"`
	Account string `json:"account,omitempty"`
	IsOwner bool   `json:"isOwner"`
}

type CreateOperationRequest = orchestrator.CreateRequest

type AddTokenRequest struct {
	Address string `json:"address"`
}
