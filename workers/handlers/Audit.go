package handlers

import (
	"net/http"
	"strconv"
)

// GetAudit lists audit entries newest first; ?limit=N caps the count.
func (a *API) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			responseJSON(w, &APIResponse{
				Status:  "error",
				Field:   "limit",
				Message: "limit must be a non-negative integer",
			}, http.StatusBadRequest)
			return
		}
		limit = n
	}
	responseJSON(w, a.Orchestrator.Trail().Entries(limit), http.StatusOK)
}
