package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tacticalpanel/panel/internal/cache"
	"github.com/tacticalpanel/panel/internal/database/testutil"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestNewJWTServiceDefaultsTTL(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, svc.TTL())
}

func TestIssueAndVerify(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "panel",
		AccessTokenTTL: time.Hour,
		Clock:          now,
	})
	require.NoError(t, err)

	token, expiresAt, err := svc.Issue("user-123", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.Equal(current.Add(time.Hour)))

	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-123", identity.UserID)
	require.Equal(t, "alice", identity.Username)
	require.NotEmpty(t, identity.TokenID)
	require.True(t, identity.ExpiresAt.Equal(expiresAt))

	other, _, err := svc.Issue("user-123", "alice")
	require.NoError(t, err)
	otherIdentity, err := svc.Verify(context.Background(), other)
	require.NoError(t, err)
	require.NotEqual(t, identity.TokenID, otherIdentity.TokenID)
}

func TestIssueRequiresUserID(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)

	_, _, err = svc.Issue(" ", "alice")
	require.Error(t, err)
}

func TestVerifyForeignSecret(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Clock: now})
	require.NoError(t, err)

	token, _, err := issuer.Issue("user-123", "alice")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", Clock: now})
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalidSignature)
	require.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestVerifyExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	token, _, err := svc.Issue("user-123", "alice")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	_, err = svc.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestVerifyMalformed(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err = svc.Verify(context.Background(), token)
		require.ErrorIs(t, err, ErrTokenMalformed, "token %q", token)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestVerifyMissingSubject(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	claims := Claims{
		Username: "ghost",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenMissingSubject)
}

func TestVerifyWrongIssuer(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "someone-else", Clock: now})
	require.NoError(t, err)
	token, _, err := issuer.Issue("user-123", "alice")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "panel", Clock: now})
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestRevokeDenyListsToken(t *testing.T) {
	current := time.Now()
	now := func() time.Time { return current }

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Hour,
		Clock:          now,
		Revocations:    NewStoreRevocationList(cache.NewDatabaseStore(db)),
	})
	require.NoError(t, err)

	ctx := context.Background()
	token, _, err := svc.Issue("user-123", "alice")
	require.NoError(t, err)
	keep, _, err := svc.Issue("user-123", "alice")
	require.NoError(t, err)

	identity, err := svc.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, identity))

	_, err = svc.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = svc.Verify(ctx, keep)
	require.NoError(t, err, "revoking one token must not affect other sessions")
}

func TestRevokeWithoutListIsNoop(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	token, _, err := svc.Issue("user-123", "alice")
	require.NoError(t, err)
	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), identity))
	_, err = svc.Verify(context.Background(), token)
	require.NoError(t, err)
}
