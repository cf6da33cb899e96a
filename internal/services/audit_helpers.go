package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/tacticalpanel/panel/internal/auditctx"
	"github.com/tacticalpanel/panel/pkg/logger"
)

// Audit actions.
const (
	AuditFirstTimeSetup = "auth.first_time_setup"
	AuditRegister       = "auth.register"
	AuditLogin          = "auth.login"
	AuditLogout         = "auth.logout"
	AuditPasswordReset  = "auth.password_reset"
	AuditTOTPSetup      = "auth.totp.setup"
	AuditTOTPEnable     = "auth.totp.enable"
	AuditTOTPDisable    = "auth.totp.disable"
	AuditSubAdminCreate = "admin.sub_admin.create"
	AuditSubAdminUpdate = "admin.sub_admin.update"
	AuditSubAdminDelete = "admin.sub_admin.delete"
	AuditServerCreate   = "server.create"
	AuditServerUpdate   = "server.update"
	AuditServerDelete   = "server.delete"
	AuditServerControl  = "server.control"

	auditSuccess = "success"
	auditFailure = "failure"
)

// recordAudit logs the supplied entry while tolerating audit failures. Actor details missing
// from the entry are filled from the request context.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if actor, ok := auditctx.FromContext(ctx); ok {
		if entry.UserID == nil && actor.UserID != "" {
			id := actor.UserID
			entry.UserID = &id
		}
		if entry.Username == "" {
			entry.Username = actor.Username
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = actor.UserAgent
		}
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
