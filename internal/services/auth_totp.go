package services

import (
	"context"
	"fmt"

	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/pkg/crypto"
	"github.com/tacticalpanel/panel/pkg/metrics"
)

// TOTPSetup is returned when enrolment starts. Secret and URI are shown to the user once.
type TOTPSetup struct {
	Secret          string
	ProvisioningURI string
	QRCode          []byte
}

// TOTPStatus describes where a user is in the 2FA lifecycle.
type TOTPStatus struct {
	Enabled bool
	Pending bool
}

// SetupTOTP generates a new pending secret. Calling it again before verification replaces
// the pending secret; once 2FA is enabled it must be disabled first.
func (s *AuthService) SetupTOTP(ctx context.Context, userID string) (*TOTPSetup, error) {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPEnabled
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("auth service: generate totp secret: %w", err)
	}
	uri, err := s.totp.ProvisioningURI(secret, user.Username, "")
	if err != nil {
		return nil, fmt.Errorf("auth service: build provisioning uri: %w", err)
	}
	qr, err := s.totp.QRCode(uri)
	if err != nil {
		return nil, fmt.Errorf("auth service: render qr code: %w", err)
	}

	encrypted, err := crypto.Encrypt([]byte(secret), s.totpKey)
	if err != nil {
		return nil, fmt.Errorf("auth service: encrypt totp secret: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"totp_secret":  encrypted,
		"totp_enabled": false,
	}).Error; err != nil {
		return nil, fmt.Errorf("auth service: store totp secret: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditTOTPSetup,
		Resource: user.ID,
		Result:   auditSuccess,
	})

	return &TOTPSetup{Secret: secret, ProvisioningURI: uri, QRCode: qr}, nil
}

// VerifyTOTP enables 2FA once a code generated from the pending secret checks out.
func (s *AuthService) VerifyTOTP(ctx context.Context, userID, code string) error {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPEnabled {
		return ErrTOTPEnabled
	}
	if user.TOTPSecret == "" {
		return ErrTOTPNotSetUp
	}

	secret, err := s.decryptTOTPSecret(user)
	if err != nil {
		return err
	}
	if !s.totp.Verify(secret, code) {
		metrics.AuthAttempts.WithLabelValues("totp", "failure").Inc()
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   &user.ID,
			Username: user.Username,
			Action:   AuditTOTPEnable,
			Resource: user.ID,
			Result:   auditFailure,
		})
		return ErrTOTPCodeRejected
	}

	if err := s.db.WithContext(ctx).Model(user).Update("totp_enabled", true).Error; err != nil {
		return fmt.Errorf("auth service: enable totp: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("totp", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditTOTPEnable,
		Resource: user.ID,
		Result:   auditSuccess,
	})
	return nil
}

// DisableTOTP turns 2FA off after re-checking the current password and clears the secret.
func (s *AuthService) DisableTOTP(ctx context.Context, userID, currentPassword string) error {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.PasswordHash, currentPassword) {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   &user.ID,
			Username: user.Username,
			Action:   AuditTOTPDisable,
			Resource: user.ID,
			Result:   auditFailure,
		})
		return ErrIncorrectPassword
	}
	if !user.TOTPEnabled {
		return ErrTOTPNotEnabled
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"totp_secret":  "",
		"totp_enabled": false,
	}).Error; err != nil {
		return fmt.Errorf("auth service: disable totp: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditTOTPDisable,
		Resource: user.ID,
		Result:   auditSuccess,
	})
	return nil
}

// TOTPStatus reports whether 2FA is enabled or awaiting verification.
func (s *AuthService) TOTPStatus(ctx context.Context, userID string) (TOTPStatus, error) {
	user, err := s.loadUser(ensureContext(ctx), userID)
	if err != nil {
		return TOTPStatus{}, err
	}
	return TOTPStatus{
		Enabled: user.TOTPEnabled,
		Pending: !user.TOTPEnabled && user.TOTPSecret != "",
	}, nil
}

func (s *AuthService) decryptTOTPSecret(user *models.User) (string, error) {
	raw, err := crypto.Decrypt(user.TOTPSecret, s.totpKey)
	if err != nil {
		return "", fmt.Errorf("auth service: decrypt totp secret: %w", err)
	}
	return string(raw), nil
}
