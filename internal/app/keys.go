package app

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DecodeKey decodes an encryption key. Hex is tried first because generated keys
// use it, then standard and raw base64; anything else is taken as raw bytes.
// A raw key made only of base64-alphabet characters is therefore base64-decoded:
// a 32 character alphanumeric key becomes 24 bytes (AES-192), not 32.
func DecodeKey(value string) ([]byte, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, errors.New("key value is empty")
	}

	if len(v)%2 == 0 {
		if decoded, err := hex.DecodeString(v); err == nil {
			return decoded, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(v); err == nil {
			return decoded, nil
		}
	}
	return []byte(v), nil
}

// KeyByteLength returns the decoded length of a key, or zero when unset.
func KeyByteLength(value string) int {
	decoded, err := DecodeKey(value)
	if err != nil {
		return 0
	}
	return len(decoded)
}

// ValidateSecrets rejects configurations that would leave tokens unsigned or
// TOTP secrets unencryptable. Run it after ApplyRuntimeDefaults.
func ValidateSecrets(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	switch n := KeyByteLength(cfg.Auth.TOTP.EncryptionKey); n {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("auth.totp.encryption_key must decode to 16, 24 or 32 bytes (current: %d)", n)
	}
}
