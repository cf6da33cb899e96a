package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/pkg/response"
)

type totpVerifyRequest struct {
	TOTPCode string `json:"totp_code" validate:"required,len=6,numeric"`
}

type totpDisableRequest struct {
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/totp/setup
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	setup, err := h.auth.SetupTOTP(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"secret":           setup.Secret,
		"provisioning_uri": setup.ProvisioningURI,
		"qr_code":          "data:image/png;base64," + base64.StdEncoding.EncodeToString(setup.QRCode),
	})
}

// POST /api/auth/totp/verify
func (h *AuthHandler) VerifyTOTP(c *gin.Context) {
	var req totpVerifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.VerifyTOTP(requestContext(c), currentUserID(c), req.TOTPCode); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "2FA enabled", gin.H{"enabled": true})
}

// POST /api/auth/totp/disable
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	var req totpDisableRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.DisableTOTP(requestContext(c), currentUserID(c), req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "2FA disabled", gin.H{"enabled": false})
}

// GET /api/auth/totp/status
func (h *AuthHandler) TOTPStatus(c *gin.Context) {
	status, err := h.auth.TOTPStatus(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"enabled": status.Enabled, "pending": status.Pending})
}
