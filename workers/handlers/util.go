package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"goscrow/logger"
	"goscrow/orchestrator"
	"goscrow/types"
)

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch orchestrator.Classify(err) {
	case types.ErrInvalidInput, types.ErrDuplicateRegistration:
		return http.StatusBadRequest
	case types.ErrNoSigningIdentity:
		return http.StatusUnauthorized
	case types.ErrUnauthorized:
		return http.StatusForbidden
	case types.ErrOperationNotFound:
		return http.StatusNotFound
	case types.ErrTransactionRejected:
		return http.StatusConflict
	case types.ErrTransactionReverted, types.ErrMetadataUnavailable:
		return http.StatusUnprocessableEntity
	case types.ErrTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) APIResponse {
	res := APIResponse{Status: "error", Message: err.Error()}
	if kind := orchestrator.Classify(err); kind != nil {
		res.Kind = kind.Error()
	}
	var fieldErr *types.FieldError
	if errors.As(err, &fieldErr) {
		res.Field = fieldErr.Field
	}
	return res
}

func responseError(w http.ResponseWriter, err error) {
	responseJSON(w, errorResponse(err), statusOf(err))
}

func responseWorkflow(w http.ResponseWriter, wf *orchestrator.Workflow, err error) {
	if err != nil {
		res := errorResponse(err)
		responseJSON(w, &APIWorkflowResponse{
			Status:   res.Status,
			Message:  res.Message,
			Field:    res.Field,
			Kind:     res.Kind,
			Workflow: wf,
		}, statusOf(err))
		return
	}
	responseJSON(w, &APIWorkflowResponse{Status: "ok", Workflow: wf}, http.StatusOK)
}

const maxBody = 1 << 16

// readJSON decodes the request body into v, answering 400 itself on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		logger.Logger.Warnf("Error reading request body: %s", err.Error())
		responseJSON(w, &APIResponse{
			Status:  "error",
			Message: "Error reading request body",
		}, http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		logger.Logger.Warnf("Error unmarshalling request body: %s", err.Error())
		responseJSON(w, &APIResponse{
			Status:  "error",
			Message: "Cannot unmarshal input JSON",
		}, http.StatusBadRequest)
		return false
	}
	return true
}
