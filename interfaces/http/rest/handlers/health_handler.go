package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/pkg/common"
	"github.com/angryss/idp/pkg/observability"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checker ports.HealthChecker
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewHealthHandler(checker ports.HealthChecker, metrics *observability.Metrics, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, metrics: metrics, logger: logger}
}

// HealthResponse is the probe payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Checked  string `json:"checked,omitempty"`
}

// Live handles GET /health/live. The process is up; nothing else is
// claimed.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, HealthResponse{Status: "alive"})
}

// Ready handles GET /health/ready. An unavailable backend answers 503 so
// the orchestrator routes traffic elsewhere; degraded still serves.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Check(r.Context())
	h.metrics.SetHealthState(string(status.State))

	resp := HealthResponse{
		Status:   string(status.State),
		Provider: status.Provider,
		Detail:   status.Detail,
		Checked:  formatTimestamp(status.Checked),
	}

	code := http.StatusOK
	if status.State == ports.HealthUnavailable {
		code = http.StatusServiceUnavailable
	}
	common.RespondJSON(w, code, resp)
}
