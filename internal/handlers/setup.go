package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/services"
	"github.com/tacticalpanel/panel/pkg/response"
)

// SetupHandler serves the one-time bootstrap of the first admin account.
type SetupHandler struct {
	auth     *services.AuthService
	sessions *AuthHandler
}

func NewSetupHandler(auth *services.AuthService, sessions *AuthHandler) *SetupHandler {
	return &SetupHandler{auth: auth, sessions: sessions}
}

type firstTimeSetupRequest struct {
	Username          string            `json:"username" validate:"required,min=3,max=64,username"`
	Password          string            `json:"password" validate:"required"`
	SecurityQuestions map[string]string `json:"security_questions" validate:"required"`
}

// GET /api/auth/check-first-run
func (h *SetupHandler) CheckFirstRun(c *gin.Context) {
	firstRun, err := h.auth.IsFirstRun(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_first_run": firstRun})
}

// POST /api/auth/first-time-setup
func (h *SetupHandler) FirstTimeSetup(c *gin.Context) {
	var req firstTimeSetupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.auth.FirstTimeSetup(requestContext(c), services.FirstTimeSetupInput{
		Username:          req.Username,
		Password:          req.Password,
		SecurityQuestions: req.SecurityQuestions,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.sessions.newSessionResponse(session))
}
