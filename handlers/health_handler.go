package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker probes one backing dependency.
type HealthChecker func(ctx context.Context) error

// HealthCheck reports process liveness.
func HealthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadinessCheck probes the named dependencies and reports 503 when
// any of them fails.
func ReadinessCheck(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		respondJSON(w, status, map[string]interface{}{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
