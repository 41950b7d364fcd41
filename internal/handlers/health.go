package handlers

import (
	"net/http"
	"time"

	domain "github.com/roasworks/attribution/internal/domain"
	"github.com/roasworks/attribution/internal/platform/httpx"
	"github.com/roasworks/attribution/internal/services"
)

var startTime = time.Now()

// HealthHandlers serves the monitoring endpoint backed by the system service.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs the health handler set. A nil system service
// degrades the endpoint to a static liveness payload.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

type healthCheckPayload struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type healthResponse struct {
	Status      string                        `json:"status"`
	Uptime      string                        `json:"uptime"`
	GeneratedAt string                        `json:"generated_at"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
}

// Healthz responds with the aggregated dependency health report.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.system == nil {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:      string(domain.HealthStatusOK),
			Uptime:      time.Since(startTime).String(),
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", "failed to collect health report", http.StatusServiceUnavailable))
		return
	}

	checks := make(map[string]healthCheckPayload, len(report.Checks))
	for name, check := range report.Checks {
		payload := healthCheckPayload{
			Status: string(check.Status),
			Detail: check.Detail,
			Error:  check.Error,
		}
		if check.Latency > 0 {
			payload.Latency = check.Latency.String()
		}
		checks[name] = payload
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	httpx.WriteJSON(w, status, healthResponse{
		Status:      string(report.Status),
		Uptime:      time.Since(startTime).String(),
		GeneratedAt: report.GeneratedAt.UTC().Format(time.RFC3339),
		Checks:      checks,
	})
}
