package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/handlers"
)

type authRouteDeps struct {
	AuthHandler     *handlers.AuthHandler
	SetupHandler    *handlers.SetupHandler
	RecoveryHandler *handlers.RecoveryHandler
	RateLimit       gin.HandlerFunc
}

func registerAuthRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, deps authRouteDeps) {
	public := api.Group("/auth")
	{
		public.GET("/check-first-run", deps.SetupHandler.CheckFirstRun)
		public.GET("/password-config", deps.AuthHandler.PasswordConfig)
		public.GET("/security-questions/:username", deps.RecoveryHandler.SecurityQuestions)
	}

	// Credential-checking endpoints share the per-IP rate limit.
	limited := api.Group("/auth", deps.RateLimit)
	{
		limited.POST("/first-time-setup", deps.SetupHandler.FirstTimeSetup)
		limited.POST("/register", deps.AuthHandler.Register)
		limited.POST("/login", deps.AuthHandler.Login)
		limited.POST("/reset-password", deps.RecoveryHandler.ResetPassword)
	}

	session := api.Group("/auth", requireAuth)
	{
		session.GET("/me", deps.AuthHandler.Me)
		session.POST("/logout", deps.AuthHandler.Logout)

		session.POST("/totp/setup", deps.AuthHandler.SetupTOTP)
		session.POST("/totp/verify", deps.AuthHandler.VerifyTOTP)
		session.POST("/totp/disable", deps.AuthHandler.DisableTOTP)
		session.GET("/totp/status", deps.AuthHandler.TOTPStatus)
	}
}
