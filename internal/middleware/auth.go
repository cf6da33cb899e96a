package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tacticalpanel/panel/internal/auditctx"
	iauth "github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/pkg/errors"
	"github.com/tacticalpanel/panel/pkg/logger"
	"github.com/tacticalpanel/panel/pkg/response"
)

const (
	CtxIdentityKey = "authIdentity"
	CtxUserIDKey   = "userID"
	CtxUsernameKey = "username"
)

// Auth enforces bearer-token authentication. Every failure, whatever the cause, yields
// the same 401 with a Bearer challenge.
func Auth(tokens *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		identity, err := tokens.Verify(c.Request.Context(), token)
		if err != nil {
			logger.WithModule("auth").Debug("token rejected",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxUserIDKey, identity.UserID)
		c.Set(CtxUsernameKey, identity.Username)
		c.Request = c.Request.WithContext(
			auditctx.WithIdentity(c.Request.Context(), identity.UserID, identity.Username),
		)

		c.Next()
	}
}

// Identity returns the verified token identity stored by Auth.
func Identity(c *gin.Context) (*iauth.Identity, bool) {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*iauth.Identity)
	return identity, ok && identity != nil
}

// AuditContext stores the caller's address and user agent for audit records.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(
			auditctx.WithClient(c.Request.Context(), c.ClientIP(), c.Request.UserAgent()),
		)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
