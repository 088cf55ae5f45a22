package twofa

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	SKEW = 1

	// DefaultTotpPeriod is the step of authenticator app codes.
	DefaultTotpPeriod = 30
	// DefaultCodePeriod is the step of codes delivered by email or SMS.
	DefaultCodePeriod = 300

	DefaultIssuer = "simple-2fa"
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateTotpSecret returns a new base32 secret for account.
func GenerateTotpSecret(issuer, account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "account", account, "issuer", issuer, "error", err)
		return "", err
	}
	return key.Secret(), nil
}

// TotpKey rebuilds the enrollment key of an existing secret.
func TotpKey(issuer, account, secret string, period uint) (*otp.Key, error) {
	raw, err := b32NoPadding.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return nil, fmt.Errorf("failed to decode totp secret: %w", err)
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
		return nil, fmt.Errorf("failed to build totp key: %w", err)
	}
	return key, nil
}

// QRImage renders key as a base64 encoded PNG.
func QRImage(key *otp.Key, size int) (string, error) {
	img, err := key.Image(size, size)
	if err != nil {
		return "", fmt.Errorf("failed to render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func GeneratePasscode(totpSecret string, period uint, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(totpSecret, t.UTC(), validateOpts(period))
	if err != nil {
		slog.Error("Failed to generate 2fa passcode", "error", err)
		return "", err
	}
	return code, nil
}

func ValidatePasscode(totpSecret, passcode string, period uint, t time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(passcode, totpSecret, t.UTC(), validateOpts(period))
	if err != nil {
		slog.Error("Failed to validate totp passcode", "error", err)
		return false, err
	}
	return valid, nil
}

func validateOpts(period uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      SKEW,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
