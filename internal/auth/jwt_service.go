package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 24 * time.Hour

// Verification failures. The HTTP layer collapses all of them into a single 401.
var (
	ErrTokenMalformed        = errors.New("jwt: token malformed")
	ErrTokenExpired          = errors.New("jwt: token expired")
	ErrTokenInvalidSignature = errors.New("jwt: invalid signature")
	ErrTokenMissingSubject   = errors.New("jwt: missing subject")
	ErrTokenRevoked          = errors.New("jwt: token revoked")
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
	Revocations    RevocationList
}

// Claims represents the claims embedded in issued session tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity is the verified caller extracted from a token.
type Identity struct {
	UserID    string
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// JWTService is responsible for issuing and validating session tokens.
type JWTService struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	now         func() time.Time
	revocations RevocationList
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		ttl:         ttl,
		now:         now,
		revocations: cfg.Revocations,
	}, nil
}

// TTL reports the lifetime given to new tokens.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new token for the user and returns it with its expiry.
func (s *JWTService) Issue(userID, username string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses and validates a signed token and consults the deny-list.
func (s *JWTService) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMissingSubject
	}

	identity := &Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	if s.revocations != nil && identity.TokenID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, identity.TokenID)
		if err != nil {
			return nil, fmt.Errorf("jwt: check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return identity, nil
}

// Revoke deny-lists the token for the remainder of its lifetime.
func (s *JWTService) Revoke(ctx context.Context, identity *Identity) error {
	if s.revocations == nil || identity == nil || identity.TokenID == "" {
		return nil
	}
	remaining := identity.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.revocations.Revoke(ctx, identity.TokenID, remaining)
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}
