package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/service"
	"github.com/aussiebroadwan/confirm/internal/confirm/store"
	"github.com/aussiebroadwan/confirm/pkg/confirmsdk"
	"github.com/aussiebroadwan/confirm/pkg/httpx"
)

// LivezHandler always answers 200 while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, confirmsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports 503 when the enrollment store cannot be reached.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	registry *service.Registry,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &confirmsdk.HealthChecks{
			Store:   "ok",
			Pending: registry.Len(),
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, confirmsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
