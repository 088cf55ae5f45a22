package twofa

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrTwoFANotFound is returned by repositories when no record matches.
var ErrTwoFANotFound = errors.New("2FA record not found")

// TwoFAEntity is one 2FA method of a login.
type TwoFAEntity struct {
	ID               uuid.UUID `json:"id"`
	LoginID          uuid.UUID `json:"login_id"`
	TwoFactorType    string    `json:"two_factor_type"`
	TwoFactorSecret  string    `json:"two_factor_secret"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Create2FAParams represents parameters for creating a 2FA record. Records
// always start disabled.
type Create2FAParams struct {
	LoginID         uuid.UUID
	TwoFactorType   string
	TwoFactorSecret string
}

// Enable2FAParams represents parameters for enabling 2FA
type Enable2FAParams struct {
	LoginID       uuid.UUID
	TwoFactorType string
}

// Disable2FAParams represents parameters for disabling 2FA
type Disable2FAParams struct {
	LoginID       uuid.UUID
	TwoFactorType string
}

// Get2FAByLoginIDParams represents parameters for getting 2FA by login ID
type Get2FAByLoginIDParams struct {
	LoginID       uuid.UUID
	TwoFactorType string
}

// TwoFARepository defines the interface for 2FA operations
type TwoFARepository interface {
	Create2FAInit(ctx context.Context, params Create2FAParams) (uuid.UUID, error)
	Enable2FA(ctx context.Context, params Enable2FAParams) error
	Disable2FA(ctx context.Context, params Disable2FAParams) error
	Get2FAByLoginID(ctx context.Context, params Get2FAByLoginIDParams) (TwoFAEntity, error)
	FindTwoFAsByLoginID(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error)
	FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error)
}
