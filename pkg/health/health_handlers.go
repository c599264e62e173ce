package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// HTTPHandler serves the main check set. Degraded still answers 200.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return respond(c.Check, false)
}

// ReadinessHandler answers 200 only when every readiness check is healthy.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return respond(c.CheckReadiness, true)
}

// LivenessHandler answers 200 only when every liveness check is healthy.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return respond(c.CheckLiveness, true)
}

func respond(run func(context.Context) Response, strict bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := run(r.Context())

		code := http.StatusOK
		switch {
		case resp.Status == StatusUnhealthy:
			code = http.StatusServiceUnavailable
		case strict && resp.Status != StatusHealthy:
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
