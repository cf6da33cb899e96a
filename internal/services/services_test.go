package services

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/internal/auth/mfa"
	"github.com/tacticalpanel/panel/internal/auth/password"
	"github.com/tacticalpanel/panel/internal/cache"
	"github.com/tacticalpanel/panel/internal/database/testutil"
)

const testPassword = "Str0ng!Pass"

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

type authFixture struct {
	db      *gorm.DB
	svc     *AuthService
	tokens  *auth.JWTService
	audit   *AuditService
	store   *cache.DatabaseStore
	limiter *AttemptLimiter
}

type fixtureOptions struct {
	limits AttemptLimits
}

func newAuthFixture(t *testing.T, opts ...func(*fixtureOptions)) *authFixture {
	t.Helper()

	cfg := fixtureOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := cache.NewDatabaseStore(db)

	tokens, err := auth.NewJWTService(auth.JWTConfig{
		Secret:      "test-secret",
		Issuer:      "panel-test",
		Revocations: auth.NewStoreRevocationList(store),
	})
	require.NoError(t, err)

	audit, err := NewAuditService(db)
	require.NoError(t, err)

	limiter := NewAttemptLimiter(store, cfg.limits)

	svc, err := NewAuthService(db, tokens, mfa.NewEngine(mfa.WithIssuer("Panel Test")), AuthConfig{
		PasswordPolicy:    password.DefaultPolicy(),
		TOTPEncryptionKey: testEncryptionKey,
	}, WithAuditService(audit), WithAttemptLimiter(limiter))
	require.NoError(t, err)

	return &authFixture{db: db, svc: svc, tokens: tokens, audit: audit, store: store, limiter: limiter}
}

func withLimits(limits AttemptLimits) func(*fixtureOptions) {
	return func(o *fixtureOptions) {
		o.limits = limits
	}
}

func securityAnswers() map[string]string {
	return map[string]string{
		"question1": "Rex",
		"question2": "Springfield",
		"question3": "Blue",
		"question4": "Pizza",
	}
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}
