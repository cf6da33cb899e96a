package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/services"
	"github.com/tacticalpanel/panel/pkg/response"
)

// RecoveryHandler serves password reset through security questions.
type RecoveryHandler struct {
	auth *services.AuthService
}

func NewRecoveryHandler(auth *services.AuthService) *RecoveryHandler {
	return &RecoveryHandler{auth: auth}
}

type resetPasswordRequest struct {
	Username    string            `json:"username" validate:"required"`
	Answers     map[string]string `json:"answers"`
	Answer1     string            `json:"answer1"`
	Answer2     string            `json:"answer2"`
	Answer3     string            `json:"answer3"`
	Answer4     string            `json:"answer4"`
	NewPassword string            `json:"new_password" validate:"required"`
}

// answers merges the keyed answers with the flat answer1..answer4 fields older clients send.
func (r resetPasswordRequest) answers() map[string]string {
	merged := make(map[string]string, len(r.Answers)+4)
	for key, answer := range r.Answers {
		merged[key] = answer
	}
	for i, answer := range []string{r.Answer1, r.Answer2, r.Answer3, r.Answer4} {
		key := "question" + string(rune('1'+i))
		if _, ok := merged[key]; !ok && strings.TrimSpace(answer) != "" {
			merged[key] = answer
		}
	}
	return merged
}

// GET /api/auth/security-questions/:username
func (h *RecoveryHandler) SecurityQuestions(c *gin.Context) {
	username := c.Param("username")
	keys, err := h.auth.SecurityQuestionKeys(requestContext(c), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"username": username, "questions": keys})
}

// POST /api/auth/reset-password
func (h *RecoveryHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(requestContext(c), services.ResetPasswordInput{
		Username:    req.Username,
		Answers:     req.answers(),
		NewPassword: req.NewPassword,
	}); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Password reset successfully", nil)
}
