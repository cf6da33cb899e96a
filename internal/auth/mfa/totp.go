package mfa

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	defaultIssuer     = "Tactical Server Panel"
	defaultQRCodeSize = 256
	defaultSkew       = 1

	period     = 30
	secretSize = 20
)

// Option allows customising the TOTP engine.
type Option func(*Engine)

// WithIssuer overrides the default issuer string encoded in provisioning URIs.
func WithIssuer(issuer string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(issuer) != "" {
			e.issuer = issuer
		}
	}
}

// WithSkew sets the number of 30 second steps tolerated on either side of now.
func WithSkew(skew uint) Option {
	return func(e *Engine) {
		e.skew = skew
	}
}

// WithQRCodeSize controls the pixel size of generated QR codes.
func WithQRCodeSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.qrCodeSize = size
		}
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// Engine generates TOTP secrets, provisioning URIs and QR codes and verifies codes.
// It keeps no per-user state.
type Engine struct {
	issuer     string
	skew       uint
	qrCodeSize int
	now        func() time.Time
}

// NewEngine constructs an Engine with the supplied options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		issuer:     defaultIssuer,
		skew:       defaultSkew,
		qrCodeSize: defaultQRCodeSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateSecret returns a fresh random base32 secret.
func (e *Engine) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: "pending",
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("totp: generate key: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI formats the otpauth:// URI an authenticator app enrols from.
// An empty issuer falls back to the engine's issuer.
func (e *Engine) ProvisioningURI(secret, account, issuer string) (string, error) {
	secret = strings.TrimSpace(secret)
	account = strings.TrimSpace(account)
	if secret == "" || account == "" {
		return "", errors.New("totp: secret and account are required")
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = e.issuer
	}
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("totp: build uri: %w", err)
	}
	return key.URL(), nil
}

// QRCode renders the provisioning URI as a PNG image.
func (e *Engine) QRCode(uri string) ([]byte, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("totp: uri is required")
	}
	return qrcode.Encode(uri, qrcode.Medium, e.qrCodeSize)
}

// VerifyCode checks a six digit code against secret, tolerating skew steps of drift.
func (e *Engine) VerifyCode(secret, code string, skew uint) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != int(otp.DigitsSix) {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// Verify is VerifyCode with the engine's default skew.
func (e *Engine) Verify(secret, code string) bool {
	return e.VerifyCode(secret, code, e.skew)
}
