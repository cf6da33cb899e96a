package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/internal/auth/mfa"
	"github.com/tacticalpanel/panel/internal/auth/password"
	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/pkg/crypto"
	apperrors "github.com/tacticalpanel/panel/pkg/errors"
	"github.com/tacticalpanel/panel/pkg/logger"
	"github.com/tacticalpanel/panel/pkg/metrics"
)

// RequiredSecurityQuestions is the number of recovery answers an account must provide.
const RequiredSecurityQuestions = 4

// AuthConfig carries the immutable settings the auth service needs.
type AuthConfig struct {
	PasswordPolicy password.Policy
	// TOTPEncryptionKey encrypts TOTP secrets at rest (AES, 16/24/32 bytes).
	TOTPEncryptionKey []byte
}

// FirstTimeSetupInput creates the bootstrap admin.
type FirstTimeSetupInput struct {
	Username          string
	Password          string
	SecurityQuestions map[string]string
}

// RegisterInput creates a regular account. Security questions are optional.
type RegisterInput struct {
	Username          string
	Password          string
	SecurityQuestions map[string]string
}

// LoginInput carries credentials and, for 2FA accounts, the current code.
type LoginInput struct {
	Username string
	Password string
	TOTPCode string
}

// ResetPasswordInput carries the answers keyed by question and the new password.
type ResetPasswordInput struct {
	Username    string
	Answers     map[string]string
	NewPassword string
}

// Session is the outcome of a successful authentication.
type Session struct {
	Token             string
	ExpiresAt         time.Time
	User              *models.User
	IsFirstLogin      bool
	RequiresTOTPSetup bool
}

// AuthOption customises the AuthService.
type AuthOption func(*AuthService)

// WithAuditService records authentication events.
func WithAuditService(audit *AuditService) AuthOption {
	return func(s *AuthService) {
		s.audit = audit
	}
}

// WithAttemptLimiter enforces per-username attempt budgets on login and reset.
func WithAttemptLimiter(limiter *AttemptLimiter) AuthOption {
	return func(s *AuthService) {
		s.limiter = limiter
	}
}

// WithAuthClock injects a custom clock, primarily for testing.
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AuthService orchestrates registration, login, recovery and 2FA on top of the credential store.
type AuthService struct {
	db      *gorm.DB
	tokens  *auth.JWTService
	totp    *mfa.Engine
	audit   *AuditService
	limiter *AttemptLimiter

	policy  password.Policy
	totpKey []byte
	now     func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, tokens *auth.JWTService, totp *mfa.Engine, cfg AuthConfig, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if totp == nil {
		return nil, errors.New("auth service: totp engine is required")
	}
	switch len(cfg.TOTPEncryptionKey) {
	case 16, 24, 32:
	default:
		return nil, errors.New("auth service: totp encryption key must be 16, 24 or 32 bytes")
	}

	svc := &AuthService{
		db:      db,
		tokens:  tokens,
		totp:    totp,
		policy:  cfg.PasswordPolicy,
		totpKey: cfg.TOTPEncryptionKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// PasswordPolicy exposes the active policy so clients can render the rules.
func (s *AuthService) PasswordPolicy() password.Policy {
	return s.policy
}

// IsFirstRun reports whether the bootstrap admin has yet to be created.
func (s *AuthService) IsFirstRun(ctx context.Context) (bool, error) {
	exists, err := s.bootstrapExists(ensureContext(ctx))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// FirstTimeSetup creates the single bootstrap admin. Every later call, concurrent ones
// included, fails with ErrAdminExists; the unique AdminSlot index decides the winner.
func (s *AuthService) FirstTimeSetup(ctx context.Context, input FirstTimeSetupInput) (*Session, error) {
	ctx = ensureContext(ctx)

	exists, err := s.bootstrapExists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAdminExists
	}

	username := normaliseUsername(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if err := password.Check(input.Password, s.policy); err != nil {
		return nil, weakPassword(err)
	}
	answers, err := hashSecurityAnswers(input.SecurityQuestions, true)
	if err != nil {
		return nil, err
	}
	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	slot := models.BootstrapAdminSlot
	user := &models.User{
		Username:          username,
		PasswordHash:      hashed,
		IsAdmin:           true,
		AdminSlot:         &slot,
		SecurityQuestions: datatypes.NewJSONType(answers),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			if exists, lookupErr := s.bootstrapExists(ctx); lookupErr == nil && exists {
				return nil, ErrAdminExists
			}
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("auth service: create admin: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditFirstTimeSetup,
		Resource: user.ID,
		Result:   auditSuccess,
	})
	logger.WithModule("auth").Info("bootstrap admin created", zap.String("username", user.Username))

	return s.issueSession(user, true)
}

// Register creates a regular, non-admin account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	ctx = ensureContext(ctx)

	username := normaliseUsername(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if err := password.Check(input.Password, s.policy); err != nil {
		return nil, weakPassword(err)
	}
	answers, err := hashSecurityAnswers(input.SecurityQuestions, false)
	if err != nil {
		return nil, err
	}

	taken, err := s.usernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		return nil, ErrUsernameTaken
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashed,
	}
	if answers != nil {
		user.SecurityQuestions = datatypes.NewJSONType(answers)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditRegister,
		Resource: user.ID,
		Result:   auditSuccess,
	})

	return s.issueSession(user, false)
}

// Login verifies credentials (and the 2FA code when enabled) and issues a session token.
// Unknown users and wrong passwords produce the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	ctx = ensureContext(ctx)

	username := normaliseUsername(input.Username)
	if err := s.limiter.Hit(ctx, attemptLogin, attemptSubject(username)); err != nil {
		return nil, err
	}

	user, err := s.findByUsername(ctx, username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}

	if user == nil {
		crypto.VerifyPassword(dummyHash(), input.Password)
		s.loginFailed(ctx, username, nil, "unknown_user")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !crypto.VerifyPassword(user.PasswordHash, input.Password) {
		s.loginFailed(ctx, username, &user.ID, "bad_password")
		return nil, apperrors.ErrInvalidCredentials
	}

	if user.TOTPEnabled {
		code := strings.TrimSpace(input.TOTPCode)
		if code == "" {
			metrics.AuthAttempts.WithLabelValues("totp", "challenge").Inc()
			return nil, ErrTOTPRequired
		}
		secret, err := s.decryptTOTPSecret(user)
		if err != nil {
			return nil, err
		}
		if !s.totp.Verify(secret, code) {
			s.loginFailed(ctx, username, &user.ID, "bad_totp")
			return nil, ErrTOTPInvalid
		}
	}

	s.limiter.Reset(ctx, attemptLogin, attemptSubject(username))

	previous := user.LastLoginAt
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("auth service: update last login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditLogin,
		Resource: user.ID,
		Result:   auditSuccess,
	})

	session, err := s.issueSession(user, previous == nil)
	if err != nil {
		return nil, err
	}
	session.RequiresTOTPSetup = previous == nil && user.IsAdmin && !user.TOTPEnabled
	return session, nil
}

// Logout revokes the presented token so it cannot be used again.
func (s *AuthService) Logout(ctx context.Context, identity *auth.Identity) error {
	ctx = ensureContext(ctx)
	if identity == nil {
		return apperrors.ErrUnauthorized
	}
	if err := s.tokens.Revoke(ctx, identity); err != nil {
		return fmt.Errorf("auth service: revoke token: %w", err)
	}
	metrics.RevokedTokens.Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &identity.UserID,
		Username: identity.Username,
		Action:   AuditLogout,
		Resource: identity.UserID,
		Result:   auditSuccess,
	})
	return nil
}

// Me returns the stored profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.loadUser(ensureContext(ctx), userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	return user, err
}

// SecurityQuestionKeys lists the question keys configured for username, sorted.
func (s *AuthService) SecurityQuestionKeys(ctx context.Context, username string) ([]string, error) {
	ctx = ensureContext(ctx)

	user, err := s.findByUsername(ctx, normaliseUsername(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSecurityQuestionsNotFound
		}
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}

	answers := user.Answers()
	if len(answers) == 0 {
		return nil, ErrSecurityQuestionsNotFound
	}
	return sortedKeys(answers), nil
}

// ResetPassword replaces the password when every stored security answer matches.
// All failures collapse into ErrResetFailed.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	ctx = ensureContext(ctx)

	username := normaliseUsername(input.Username)
	if err := s.limiter.Hit(ctx, attemptReset, attemptSubject(username)); err != nil {
		return err
	}
	if err := password.Check(input.NewPassword, s.policy); err != nil {
		return weakPassword(err)
	}

	user, err := s.findByUsername(ctx, username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("auth service: load user: %w", err)
	}

	var stored models.SecurityAnswers
	if user != nil {
		stored = user.Answers()
	}
	if !answersMatch(stored, input.Answers) || user == nil {
		metrics.AuthAttempts.WithLabelValues("reset", "failure").Inc()
		entry := AuditEntry{Username: username, Action: AuditPasswordReset, Result: auditFailure}
		if user != nil {
			entry.UserID = &user.ID
		}
		recordAudit(s.audit, ctx, entry)
		return ErrResetFailed
	}

	hashed, err := crypto.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hashed).Error; err != nil {
		return fmt.Errorf("auth service: update password: %w", err)
	}

	s.limiter.Reset(ctx, attemptReset, attemptSubject(username))
	metrics.AuthAttempts.WithLabelValues("reset", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   AuditPasswordReset,
		Resource: user.ID,
		Result:   auditSuccess,
	})
	return nil
}

func (s *AuthService) issueSession(user *models.User, firstLogin bool) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}
	return &Session{
		Token:             token,
		ExpiresAt:         expiresAt,
		User:              user,
		IsFirstLogin:      firstLogin,
		RequiresTOTPSetup: firstLogin && user.IsAdmin && !user.TOTPEnabled,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string, userID *string, reason string) {
	metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   userID,
		Username: username,
		Action:   AuditLogin,
		Result:   auditFailure,
		Metadata: map[string]any{"reason": reason},
	})
}

func (s *AuthService) bootstrapExists(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("admin_slot = ?", models.BootstrapAdminSlot).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("auth service: check admin: %w", err)
	}
	return count > 0, nil
}

func (s *AuthService) usernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("auth service: check username: %w", err)
	}
	return count > 0, nil
}

func (s *AuthService) findByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserNotFound
	}
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	return &user, nil
}

// hashSecurityAnswers validates and hashes recovery answers. With required unset an empty
// map is accepted and yields nil.
func hashSecurityAnswers(raw map[string]string, required bool) (models.SecurityAnswers, error) {
	if len(raw) == 0 && !required {
		return nil, nil
	}
	if len(raw) != RequiredSecurityQuestions {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Exactly %d security questions are required", RequiredSecurityQuestions))
	}

	hashed := make(models.SecurityAnswers, len(raw))
	for key, answer := range raw {
		key = strings.TrimSpace(key)
		if key == "" || crypto.NormaliseAnswer(answer) == "" {
			return nil, apperrors.NewBadRequest("Security questions and answers must not be empty")
		}
		if _, dup := hashed[key]; dup {
			return nil, apperrors.NewBadRequest("Security question keys must be unique")
		}
		h, err := crypto.HashAnswer(answer)
		if err != nil {
			return nil, fmt.Errorf("auth service: hash answer: %w", err)
		}
		hashed[key] = h
	}
	return hashed, nil
}

// answersMatch requires every stored answer to be present and correct. Every stored answer
// is checked so the time taken does not reveal which one failed.
func answersMatch(stored models.SecurityAnswers, given map[string]string) bool {
	if len(stored) != RequiredSecurityQuestions {
		crypto.VerifyAnswer(dummyHash(), "")
		return false
	}

	normalised := make(map[string]string, len(given))
	for key, answer := range given {
		normalised[strings.TrimSpace(key)] = answer
	}

	ok := true
	for key, hash := range stored {
		answer, present := normalised[key]
		if !crypto.VerifyAnswer(hash, answer) || !present {
			ok = false
		}
	}
	return ok
}

var (
	dummyOnce      sync.Once
	dummyHashValue string
)

// dummyHash gives unknown-user paths a bcrypt comparison of comparable cost.
func dummyHash() string {
	dummyOnce.Do(func() {
		dummyHashValue, _ = crypto.HashPassword("panel-dummy-password")
	})
	return dummyHashValue
}
