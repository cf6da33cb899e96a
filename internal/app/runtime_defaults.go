package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tacticalpanel/panel/pkg/crypto"
)

const (
	jwtSecretBytes = 48
	totpKeyBytes   = 32
)

// ApplyRuntimeDefaults fills in secrets missing from the configuration. The returned
// map names the generated keys so callers can log the event without exposing values.
// Generated secrets live for the process only: restarting invalidates issued tokens
// and, for the TOTP key, any enrolled second factor.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.TOTP.EncryptionKey) == "" {
		key, err := generateHexKey(totpKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("generate totp encryption key: %w", err)
		}
		cfg.Auth.TOTP.EncryptionKey = key
		generated["auth.totp.encryption_key"] = true
	}

	return generated, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
