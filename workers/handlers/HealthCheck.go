package handlers

import (
	"net/http"
)

// HealthCheck is healthy while at least one ledger endpoint answers.
func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	res := &APIHealthResponse{Status: "error", Endpoints: a.Health.Health()}
	for _, e := range res.Endpoints {
		if e.OK() {
			res.Status = "ok"
			break
		}
	}
	if a.Redis != nil {
		res.Redis = "ok"
		if err := a.Redis.Ping(); err != nil {
			res.Redis = err.Error()
		}
	}

	code := http.StatusOK
	if res.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	responseJSON(w, res, code)
}
