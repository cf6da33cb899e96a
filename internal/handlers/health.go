package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/monitoring"
	"github.com/tacticalpanel/panel/pkg/response"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Live always answers 200 while the process serves requests.
func (h *HealthHandler) Live(c *gin.Context) {
	response.Success(c, http.StatusOK, h.manager.Liveness())
}

// Ready probes the database and cache; any failing dependency yields 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	report := h.manager.Readiness(c.Request.Context())
	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
