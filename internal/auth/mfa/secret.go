package mfa

import (
	"encoding/base32"
	"fmt"
	"strings"
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// decodeSecret turns a base32 secret back into raw bytes so totp.Generate re-encodes the same value.
func decodeSecret(secret string) ([]byte, error) {
	raw, err := b32.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return nil, fmt.Errorf("totp: invalid secret: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("totp: invalid secret: empty")
	}
	return raw, nil
}
