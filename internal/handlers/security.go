package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/security"
	"github.com/tacticalpanel/panel/pkg/response"
)

type SecurityHandler struct {
	svc *security.PostureService
}

func NewSecurityHandler(svc *security.PostureService) *SecurityHandler {
	return &SecurityHandler{svc: svc}
}

// GET /api/admin/security-audit
func (h *SecurityHandler) Audit(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.Run(requestContext(c)))
}
