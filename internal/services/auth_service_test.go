package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/internal/auth/mfa"
	"github.com/tacticalpanel/panel/internal/auth/password"
	"github.com/tacticalpanel/panel/internal/models"
	apperrors "github.com/tacticalpanel/panel/pkg/errors"
)

func TestNewAuthServiceValidatesDependencies(t *testing.T) {
	f := newAuthFixture(t)

	_, err := NewAuthService(nil, f.tokens, mfa.NewEngine(), AuthConfig{TOTPEncryptionKey: testEncryptionKey})
	require.Error(t, err)

	_, err = NewAuthService(f.db, f.tokens, mfa.NewEngine(), AuthConfig{TOTPEncryptionKey: []byte("short")})
	require.EqualError(t, err, "auth service: totp encryption key must be 16, 24 or 32 bytes")
}

func TestFirstTimeSetupCreatesBootstrapAdmin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	firstRun, err := f.svc.IsFirstRun(ctx)
	require.NoError(t, err)
	require.True(t, firstRun)

	session, err := f.svc.FirstTimeSetup(ctx, FirstTimeSetupInput{
		Username:          "admin",
		Password:          testPassword,
		SecurityQuestions: securityAnswers(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.True(t, session.User.IsAdmin)
	require.True(t, session.User.IsBootstrapAdmin())
	require.True(t, session.RequiresTOTPSetup)

	var stored models.User
	require.NoError(t, f.db.Take(&stored, "username = ?", "admin").Error)
	require.NotEqual(t, testPassword, stored.PasswordHash)
	for key, hash := range stored.Answers() {
		require.NotEqual(t, securityAnswers()[key], hash)
	}

	firstRun, err = f.svc.IsFirstRun(ctx)
	require.NoError(t, err)
	require.False(t, firstRun)

	_, err = f.svc.FirstTimeSetup(ctx, FirstTimeSetupInput{
		Username:          "second",
		Password:          testPassword,
		SecurityQuestions: securityAnswers(),
	})
	require.ErrorIs(t, err, ErrAdminExists)
}

func TestFirstTimeSetupRequiresFourAnswersAndStrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	answers := securityAnswers()
	delete(answers, "question4")
	_, err := f.svc.FirstTimeSetup(ctx, FirstTimeSetupInput{Username: "admin", Password: testPassword, SecurityQuestions: answers})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.FirstTimeSetup(ctx, FirstTimeSetupInput{Username: "admin", Password: "weak", SecurityQuestions: securityAnswers()})
	appErr := apperrors.FromError(err)
	require.Equal(t, "WEAK_PASSWORD", appErr.Code)
	require.Contains(t, appErr.Message, "at least 8 characters")

	firstRun, err := f.svc.IsFirstRun(ctx)
	require.NoError(t, err)
	require.True(t, firstRun)
}

func TestFirstTimeSetupConcurrentCallsHaveOneWinner(t *testing.T) {
	f := newAuthFixture(t)

	const callers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.FirstTimeSetup(context.Background(), FirstTimeSetupInput{
				Username:          "admin" + string(rune('a'+i)),
				Password:          testPassword,
				SecurityQuestions: securityAnswers(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, winners)
	require.Len(t, failures, callers-1)
	for _, err := range failures {
		require.ErrorIs(t, err, ErrAdminExists)
	}

	var admins int64
	require.NoError(t, f.db.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error)
	require.Equal(t, int64(1), admins)
}

func TestRegisterAndDuplicateUsername(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.False(t, session.User.IsAdmin)
	require.False(t, session.User.IsSubAdmin)

	identity, err := f.tokens.Verify(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, identity.UserID)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = f.svc.Register(ctx, RegisterInput{
		Username:          "bob",
		Password:          testPassword,
		SecurityQuestions: map[string]string{"question1": "only one"},
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestLoginSuccessAndFirstLoginFlags(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	first, err := f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.True(t, first.IsFirstLogin)
	require.False(t, first.RequiresTOTPSetup)
	require.NotNil(t, first.User.LastLoginAt)

	second, err := f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.False(t, second.IsFirstLogin)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(ctx, LoginInput{Username: "alice", Password: "Wrong!Pass1"})
	_, unknownUser := f.svc.Login(ctx, LoginInput{Username: "mallory", Password: testPassword})

	require.ErrorIs(t, wrongPassword, apperrors.ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, apperrors.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())

	logs, _, err := f.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: AuditLogin, Result: auditFailure}})
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestLoginAttemptLimit(t *testing.T) {
	f := newAuthFixture(t, withLimits(AttemptLimits{Login: 2, Window: time.Minute}))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "Wrong!Pass1"})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}

	_, err = f.svc.Login(ctx, LoginInput{Username: " alice ", Password: testPassword})
	require.ErrorIs(t, err, ErrTooManyAttempts)
	require.Equal(t, 429, apperrors.FromError(err).StatusCode)
}

func TestLoginAttemptBudgetsFollowExactUsername(t *testing.T) {
	f := newAuthFixture(t, withLimits(AttemptLimits{Login: 2, Window: time.Minute}))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Username: "Alice", Password: testPassword})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.svc.Login(ctx, LoginInput{Username: "Alice", Password: "Wrong!Pass1"})
		require.Error(t, err)
	}
	_, err = f.svc.Login(ctx, LoginInput{Username: "Alice", Password: testPassword})
	require.ErrorIs(t, err, ErrTooManyAttempts)

	session, err := f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, "alice", session.User.Username)
}

func TestLoginResetsAttemptsOnSuccess(t *testing.T) {
	f := newAuthFixture(t, withLimits(AttemptLimits{Login: 2, Window: time.Minute}))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "Wrong!Pass1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "Wrong!Pass1"})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}
}

func TestTOTPLifecycleAndTwoStepLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	userID := session.User.ID

	status, err := f.svc.TOTPStatus(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, TOTPStatus{}, status)

	require.ErrorIs(t, f.svc.VerifyTOTP(ctx, userID, "123456"), ErrTOTPNotSetUp)

	setup, err := f.svc.SetupTOTP(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.True(t, strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/"))
	require.NotEmpty(t, setup.QRCode)

	var stored models.User
	require.NoError(t, f.db.Take(&stored, "id = ?", userID).Error)
	require.NotEqual(t, setup.Secret, stored.TOTPSecret)
	require.False(t, stored.TOTPEnabled)

	status, err = f.svc.TOTPStatus(ctx, userID)
	require.NoError(t, err)
	require.True(t, status.Pending)

	require.ErrorIs(t, f.svc.VerifyTOTP(ctx, userID, wrongCode(currentCode(t, setup.Secret))), ErrTOTPCodeRejected)
	require.NoError(t, f.svc.VerifyTOTP(ctx, userID, currentCode(t, setup.Secret)))

	_, err = f.svc.SetupTOTP(ctx, userID)
	require.ErrorIs(t, err, ErrTOTPEnabled)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.ErrorIs(t, err, ErrTOTPRequired)
	require.Equal(t, "2FA code required", apperrors.FromError(err).Message)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword, TOTPCode: wrongCode(currentCode(t, setup.Secret))})
	require.ErrorIs(t, err, ErrTOTPInvalid)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "Wrong!Pass1", TOTPCode: currentCode(t, setup.Secret)})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	loggedIn, err := f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword, TOTPCode: currentCode(t, setup.Secret)})
	require.NoError(t, err)
	require.NotEmpty(t, loggedIn.Token)

	require.ErrorIs(t, f.svc.DisableTOTP(ctx, userID, "Wrong!Pass1"), ErrIncorrectPassword)
	require.NoError(t, f.svc.DisableTOTP(ctx, userID, testPassword))
	require.ErrorIs(t, f.svc.DisableTOTP(ctx, userID, testPassword), ErrTOTPNotEnabled)

	require.NoError(t, f.db.Take(&stored, "id = ?", userID).Error)
	require.Empty(t, stored.TOTPSecret)
	require.False(t, stored.TOTPEnabled)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
}

func TestSecurityQuestionKeys(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword, SecurityQuestions: securityAnswers()})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Username: "bob", Password: testPassword})
	require.NoError(t, err)

	keys, err := f.svc.SecurityQuestionKeys(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"question1", "question2", "question3", "question4"}, keys)

	_, err = f.svc.SecurityQuestionKeys(ctx, "bob")
	require.ErrorIs(t, err, ErrSecurityQuestionsNotFound)

	_, err = f.svc.SecurityQuestionKeys(ctx, "nobody")
	require.ErrorIs(t, err, ErrSecurityQuestionsNotFound)
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword, SecurityQuestions: securityAnswers()})
	require.NoError(t, err)

	answers := securityAnswers()
	answers["question1"] = "  REX "
	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordInput{
		Username:    "alice",
		Answers:     answers,
		NewPassword: "N3w!Password",
	}))

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: "N3w!Password"})
	require.NoError(t, err)
}

func TestResetPasswordFailuresAreGeneric(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword, SecurityQuestions: securityAnswers()})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Username: "bob", Password: testPassword})
	require.NoError(t, err)

	wrong := securityAnswers()
	wrong["question3"] = "Green"
	missing := securityAnswers()
	delete(missing, "question2")

	cases := map[string]ResetPasswordInput{
		"wrong answer":   {Username: "alice", Answers: wrong, NewPassword: "N3w!Password"},
		"missing answer": {Username: "alice", Answers: missing, NewPassword: "N3w!Password"},
		"unknown user":   {Username: "mallory", Answers: securityAnswers(), NewPassword: "N3w!Password"},
		"no questions":   {Username: "bob", Answers: securityAnswers(), NewPassword: "N3w!Password"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			err := f.svc.ResetPassword(ctx, input)
			require.ErrorIs(t, err, ErrResetFailed)
			require.Equal(t, "Invalid username or security answers", err.Error())
		})
	}

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Username: "alice", Answers: securityAnswers(), NewPassword: "weak"})
	require.Equal(t, "WEAK_PASSWORD", apperrors.FromError(err).Code)

	_, err = f.svc.Login(ctx, LoginInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
}

func TestResetPasswordAttemptLimit(t *testing.T) {
	f := newAuthFixture(t, withLimits(AttemptLimits{Reset: 1, Window: time.Minute}))
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword, SecurityQuestions: securityAnswers()})
	require.NoError(t, err)

	wrong := securityAnswers()
	wrong["question1"] = "nope"
	require.ErrorIs(t, f.svc.ResetPassword(ctx, ResetPasswordInput{Username: "alice", Answers: wrong, NewPassword: "N3w!Password"}), ErrResetFailed)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, ResetPasswordInput{Username: "alice", Answers: securityAnswers(), NewPassword: "N3w!Password"}), ErrTooManyAttempts)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	identity, err := f.tokens.Verify(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, identity))

	_, err = f.tokens.Verify(ctx, session.Token)
	require.ErrorIs(t, err, auth.ErrTokenRevoked)

	require.ErrorIs(t, f.svc.Logout(ctx, nil), apperrors.ErrUnauthorized)
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	user, err := f.svc.Me(ctx, session.User.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	_, err = f.svc.Me(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPasswordPolicyIsExposed(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, password.DefaultPolicy(), f.svc.PasswordPolicy())
}

func wrongCode(code string) string {
	digits := []byte(code)
	digits[0] = '0' + (digits[0]-'0'+5)%10
	return string(digits)
}
