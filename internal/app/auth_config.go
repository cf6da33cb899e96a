package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/internal/auth/mfa"
	"github.com/tacticalpanel/panel/internal/auth/password"
	"github.com/tacticalpanel/panel/internal/services"
)

const defaultAttemptWindow = 15 * time.Minute

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
// The revocation list is supplied by the caller once the cache backend is known.
func (c AuthConfig) JWTServiceConfig(revocations auth.RevocationList) auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
		Revocations:    revocations,
	}
}

// PasswordPolicy converts the password settings into a policy, clamping the minimum length.
func (c AuthConfig) PasswordPolicy() password.Policy {
	minLength := c.Password.MinLength
	if minLength <= 0 {
		minLength = password.DefaultMinLength
	}
	return password.Policy{
		MinLength:        minLength,
		RequireUppercase: c.Password.RequireUppercase,
		RequireLowercase: c.Password.RequireLowercase,
		RequireNumbers:   c.Password.RequireNumbers,
		RequireSpecial:   c.Password.RequireSpecial,
	}
}

// TOTPOptions returns the engine options for the configured issuer, skew and QR size.
func (c AuthConfig) TOTPOptions() []mfa.Option {
	opts := []mfa.Option{mfa.WithSkew(c.TOTP.Skew)}
	if issuer := strings.TrimSpace(c.TOTP.Issuer); issuer != "" {
		opts = append(opts, mfa.WithIssuer(issuer))
	}
	if c.TOTP.QRCodeSize > 0 {
		opts = append(opts, mfa.WithQRCodeSize(c.TOTP.QRCodeSize))
	}
	return opts
}

// AttemptLimits converts the per-username budgets for the attempt limiter.
func (c AuthConfig) AttemptLimits() services.AttemptLimits {
	window := c.Limits.Window
	if window <= 0 {
		window = defaultAttemptWindow
	}
	return services.AttemptLimits{
		Login:  c.Limits.LoginAttempts,
		Reset:  c.Limits.ResetAttempts,
		Window: window,
	}
}

// AuthServiceConfig decodes the TOTP encryption key and bundles the auth service settings.
func (c AuthConfig) AuthServiceConfig() (services.AuthConfig, error) {
	key, err := DecodeKey(c.TOTP.EncryptionKey)
	if err != nil {
		return services.AuthConfig{}, fmt.Errorf("decode totp encryption key: %w", err)
	}
	return services.AuthConfig{
		PasswordPolicy:    c.PasswordPolicy(),
		TOTPEncryptionKey: key,
	}, nil
}
