package twofa

import (
	"context"

	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// NoOpTwoFactorService is mounted when 2FA is switched off. Status reports
// nothing enabled and every other operation fails as unavailable.
type NoOpTwoFactorService struct{}

func NewNoOpTwoFactorService() TwoFactorService {
	return &NoOpTwoFactorService{}
}

func notConfigured() error {
	return apperrors.New(apperrors.ErrCodeUnavailable, "Two-factor authentication is not configured")
}

func (n *NoOpTwoFactorService) SendVerification(ctx context.Context, subject Subject, twoFactorType string) error {
	return notConfigured()
}

func (n *NoOpTwoFactorService) AuthenticatorLink(ctx context.Context, subject Subject) (AuthenticatorLink, error) {
	return AuthenticatorLink{}, notConfigured()
}

func (n *NoOpTwoFactorService) VerifyLogin(ctx context.Context, subject Subject, twoFactorType, passcode string) error {
	return notConfigured()
}

func (n *NoOpTwoFactorService) RequestEnable(ctx context.Context, subject Subject, twoFactorType string) (string, error) {
	return "", notConfigured()
}

func (n *NoOpTwoFactorService) VerifyEnable(ctx context.Context, subject Subject, twoFactorType, passcode string) error {
	return notConfigured()
}

func (n *NoOpTwoFactorService) Status(ctx context.Context, subject Subject) (Status, error) {
	return Status{Methods: []string{}}, nil
}

func (n *NoOpTwoFactorService) Disable(ctx context.Context, subject Subject) error {
	return notConfigured()
}
