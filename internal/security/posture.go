package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/app"
	"github.com/tacticalpanel/panel/internal/models"
)

// CheckStatus captures the outcome of a posture check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minJWTSecretBytes         = 32
	recommendedJWTSecretBytes = 48
	maxRecommendedTokenTTL    = 24 * time.Hour
)

// Check contains the result of a single verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// PostureService evaluates the credential subsystem's configuration and bootstrap state.
type PostureService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewPostureService constructs the service. Missing inputs degrade the affected checks
// to warnings.
func NewPostureService(db *gorm.DB, cfg *app.Config) *PostureService {
	return &PostureService{db: db, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *PostureService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes every check.
func (s *PostureService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkBootstrapAdmin(ctx),
		s.checkJWTSecret(),
		s.checkTOTPKey(),
		s.checkTokenTTL(),
		s.checkAttemptLimits(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *PostureService) checkBootstrapAdmin(ctx context.Context) Check {
	const id = "bootstrap_admin_present"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable, unable to confirm the administrator account.",
			Remediation: "Ensure database connectivity before running the check.",
		}
	}

	var admins []models.User
	err := s.db.WithContext(ctx).
		Select("id", "is_admin", "admin_slot").
		Where("is_admin = ?", true).
		Find(&admins).Error
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not verify the administrator account: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}
	bootstrapped := false
	for i := range admins {
		if admins[i].IsBootstrapAdmin() {
			bootstrapped = true
			break
		}
	}
	if !bootstrapped {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "First-time setup has not been completed.",
			Remediation: "Create the administrator through /api/auth/first-time-setup.",
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "Administrator account present.",
		Details: map[string]any{"admins": len(admins)},
	}
}

func (s *PostureService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.cfg == nil {
		return missingConfig(id)
	}

	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Set PANEL_AUTH_JWT_SECRET to a random value of at least 32 bytes.",
		}
	case length < minJWTSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
			Details:     map[string]any{"length": length},
		}
	case length < recommendedJWTSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider 48 or more.", length),
			Remediation: "Increase the length of PANEL_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *PostureService) checkTOTPKey() Check {
	const id = "totp_encryption_key"
	if s.cfg == nil {
		return missingConfig(id)
	}

	key, err := app.DecodeKey(s.cfg.Auth.TOTP.EncryptionKey)
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "TOTP encryption key is not configured.",
			Remediation: "Set PANEL_AUTH_TOTP_ENCRYPTION_KEY to 32 random bytes (hex or base64).",
		}
	}

	switch len(key) {
	case 32:
		return Check{ID: id, Status: StatusPass, Message: "TOTP secrets are sealed with AES-256-GCM."}
	case 16, 24:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("TOTP encryption key is %d bytes; AES-256 needs 32.", len(key)),
			Remediation: "Rotate to a 32 byte key.",
			Details:     map[string]any{"length": len(key)},
		}
	default:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("TOTP encryption key has an unusable length (%d bytes).", len(key)),
			Remediation: "Use a 16, 24 or 32 byte key.",
			Details:     map[string]any{"length": len(key)},
		}
	}
}

func (s *PostureService) checkTokenTTL() Check {
	const id = "access_token_ttl"
	if s.cfg == nil {
		return missingConfig(id)
	}

	ttl := s.cfg.Auth.JWT.TTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Access token TTL is not configured; the default of 24h applies.",
			Remediation: "Set PANEL_AUTH_JWT_ACCESS_TOKEN_TTL to control token lifetime.",
		}
	}
	if ttl > maxRecommendedTokenTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds %s.", ttl, maxRecommendedTokenTTL),
			Remediation: "Shorten the token lifetime to limit exposure of leaked tokens.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Access token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *PostureService) checkAttemptLimits() Check {
	const id = "login_attempt_limit"
	if s.cfg == nil {
		return missingConfig(id)
	}

	limits := s.cfg.Auth.Limits
	if limits.LoginAttempts <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Login attempt limiting is disabled.",
			Remediation: "Set PANEL_AUTH_LIMITS_LOGIN_ATTEMPTS to bound password guessing.",
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("At most %d login attempts per %s.", limits.LoginAttempts, limits.Window),
		Details: map[string]any{"attempts": limits.LoginAttempts, "window": limits.Window.String()},
	}
}

func missingConfig(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded, unable to evaluate.",
		Remediation: "Load configuration before running the check.",
	}
}
