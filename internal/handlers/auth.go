package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/middleware"
	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/internal/services"
	"github.com/tacticalpanel/panel/pkg/errors"
	"github.com/tacticalpanel/panel/pkg/response"
)

// AuthHandler serves registration, login, logout, profile and 2FA endpoints.
type AuthHandler struct {
	auth *services.AuthService
	ttl  time.Duration
}

// NewAuthHandler constructs an AuthHandler; ttl is reported to clients as the session timeout.
func NewAuthHandler(auth *services.AuthService, ttl time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, ttl: ttl}
}

type registerRequest struct {
	Username          string            `json:"username" validate:"required,min=3,max=64,username"`
	Password          string            `json:"password" validate:"required"`
	SecurityQuestions map[string]string `json:"security_questions"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code"`
}

type sessionResponse struct {
	AccessToken           string    `json:"access_token"`
	TokenType             string    `json:"token_type"`
	UserID                string    `json:"user_id"`
	Username              string    `json:"username"`
	IsAdmin               bool      `json:"is_admin"`
	IsSubAdmin            bool      `json:"is_sub_admin"`
	ExpiresAt             time.Time `json:"expires_at"`
	SessionTimeoutMinutes int       `json:"session_timeout_minutes"`
	IsFirstLogin          bool      `json:"is_first_login"`
	RequiresTOTPSetup     bool      `json:"requires_totp_setup"`
}

type userResponse struct {
	ID                string                   `json:"id"`
	Username          string                   `json:"username"`
	IsAdmin           bool                     `json:"is_admin"`
	IsSubAdmin        bool                     `json:"is_sub_admin"`
	ParentAdminID     *string                  `json:"parent_admin_id,omitempty"`
	TOTPEnabled       bool                     `json:"totp_enabled"`
	ServerPermissions models.ServerPermissions `json:"server_permissions"`
	CreatedAt         time.Time                `json:"created_at"`
	LastLoginAt       *time.Time               `json:"last_login_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:                user.ID,
		Username:          user.Username,
		IsAdmin:           user.IsAdmin,
		IsSubAdmin:        user.IsSubAdmin,
		ParentAdminID:     user.ParentAdminID,
		TOTPEnabled:       user.TOTPEnabled,
		ServerPermissions: user.Grants(),
		CreatedAt:         user.CreatedAt,
		LastLoginAt:       user.LastLoginAt,
	}
}

func (h *AuthHandler) newSessionResponse(session *services.Session) sessionResponse {
	return sessionResponse{
		AccessToken:           session.Token,
		TokenType:             "bearer",
		UserID:                session.User.ID,
		Username:              session.User.Username,
		IsAdmin:               session.User.IsAdmin,
		IsSubAdmin:            session.User.IsSubAdmin,
		ExpiresAt:             session.ExpiresAt,
		SessionTimeoutMinutes: int(h.ttl / time.Minute),
		IsFirstLogin:          session.IsFirstLogin,
		RequiresTOTPSetup:     session.RequiresTOTPSetup,
	}
}

// GET /api/auth/password-config
func (h *AuthHandler) PasswordConfig(c *gin.Context) {
	response.Success(c, http.StatusOK, h.auth.PasswordPolicy())
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.auth.Register(requestContext(c), services.RegisterInput{
		Username:          req.Username,
		Password:          req.Password,
		SecurityQuestions: req.SecurityQuestions,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.newSessionResponse(session))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.auth.Login(requestContext(c), services.LoginInput{
		Username: req.Username,
		Password: req.Password,
		TOTPCode: req.TOTPCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.newSessionResponse(session))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.auth.Logout(requestContext(c), identity); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Logged out", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}
