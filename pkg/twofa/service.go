package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/tendant/simple-2fa/pkg/clock"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/notification"
	"github.com/tendant/simple-2fa/pkg/ratelimit"
)

const (
	TWO_FACTOR_TYPE_EMAIL         = "email"
	TWO_FACTOR_TYPE_SMS           = "phone_number"
	TWO_FACTOR_TYPE_AUTHENTICATOR = "google_authenticator"
)

const (
	msgInvalidCode    = "Invalid code"
	msgNotEnabled     = "Two-factor authentication is not enabled"
	msgAlreadyEnabled = "Two-factor authentication is already enabled"
)

// Subject is the login a 2FA operation acts on.
type Subject struct {
	LoginID     uuid.UUID
	Email       string
	PhoneNumber string
	DisplayName string
}

// AuthenticatorLink is the enrollment payload for authenticator apps.
type AuthenticatorLink struct {
	Link    string
	QRImage string // base64 PNG, empty when disabled
}

type Status struct {
	Enabled bool
	Methods []string
}

type TwoFactorService interface {
	SendVerification(ctx context.Context, subject Subject, twoFactorType string) error
	AuthenticatorLink(ctx context.Context, subject Subject) (AuthenticatorLink, error)
	VerifyLogin(ctx context.Context, subject Subject, twoFactorType, passcode string) error
	RequestEnable(ctx context.Context, subject Subject, twoFactorType string) (string, error)
	VerifyEnable(ctx context.Context, subject Subject, twoFactorType, passcode string) error
	Status(ctx context.Context, subject Subject) (Status, error)
	Disable(ctx context.Context, subject Subject) error
}

type TwoFaService struct {
	repo                TwoFARepository
	notificationManager *notification.NotificationManager
	limiter             *ratelimit.RateLimiter
	clock               clock.Clocker
	issuer              string
	totpPeriod          uint
	codePeriod          uint
	qrSize              int
}

func NewTwoFaService(repo TwoFARepository, opts ...Option) *TwoFaService {
	s := &TwoFaService{
		repo:       repo,
		clock:      clock.New(),
		issuer:     DefaultIssuer,
		totpPeriod: DefaultTotpPeriod,
		codePeriod: DefaultCodePeriod,
		qrSize:     200,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateTwoFactorType checks if the given type is a valid 2FA type
func ValidateTwoFactorType(twoFactorType string) error {
	switch twoFactorType {
	case TWO_FACTOR_TYPE_EMAIL, TWO_FACTOR_TYPE_SMS, TWO_FACTOR_TYPE_AUTHENTICATOR:
		return nil
	default:
		return apperrors.Newf(apperrors.ErrCodeUnsupportedMethod, "Unsupported verification method: %s", twoFactorType)
	}
}

func (s *TwoFaService) period(twoFactorType string) uint {
	if twoFactorType == TWO_FACTOR_TYPE_AUTHENTICATOR {
		return s.totpPeriod
	}
	return s.codePeriod
}

// SendVerification delivers a login code for an enabled email or SMS method.
func (s *TwoFaService) SendVerification(ctx context.Context, subject Subject, twoFactorType string) error {
	if err := ValidateTwoFactorType(twoFactorType); err != nil {
		return err
	}
	if twoFactorType == TWO_FACTOR_TYPE_AUTHENTICATOR {
		return apperrors.New(apperrors.ErrCodeUnsupportedMethod, "Authenticator codes are not sent, use your authenticator app")
	}

	entity, err := s.enabledRecord(ctx, subject.LoginID, twoFactorType)
	if err != nil {
		return err
	}
	return s.deliver(ctx, subject, entity)
}

// AuthenticatorLink returns the otpauth URL of the caller's authenticator
// secret, creating the secret on first use. Once the authenticator is enabled
// the secret is no longer handed out.
func (s *TwoFaService) AuthenticatorLink(ctx context.Context, subject Subject) (AuthenticatorLink, error) {
	entity, err := s.ensureRecord(ctx, subject, TWO_FACTOR_TYPE_AUTHENTICATOR)
	if err != nil {
		return AuthenticatorLink{}, err
	}
	if entity.TwoFactorEnabled {
		return AuthenticatorLink{}, apperrors.New(apperrors.ErrCodeTwoFAAlreadyActive, msgAlreadyEnabled)
	}
	return s.authenticatorLink(subject, entity)
}

// VerifyLogin checks a login code against an enabled method.
func (s *TwoFaService) VerifyLogin(ctx context.Context, subject Subject, twoFactorType, passcode string) error {
	if err := ValidateTwoFactorType(twoFactorType); err != nil {
		return err
	}
	entity, err := s.enabledRecord(ctx, subject.LoginID, twoFactorType)
	if err != nil {
		return err
	}
	if err := s.checkPasscode(entity, passcode); err != nil {
		slog.Warn("Invalid 2FA login code", "loginId", subject.LoginID, "twoFactorType", twoFactorType)
		return err
	}
	slog.Info("2FA login verified", "loginId", subject.LoginID, "twoFactorType", twoFactorType)
	return nil
}

// RequestEnable starts enrollment of twoFactorType. Email and SMS get a code
// delivered; the authenticator gets its enrollment link returned.
func (s *TwoFaService) RequestEnable(ctx context.Context, subject Subject, twoFactorType string) (string, error) {
	if err := ValidateTwoFactorType(twoFactorType); err != nil {
		return "", err
	}
	entity, err := s.ensureRecord(ctx, subject, twoFactorType)
	if err != nil {
		return "", err
	}
	if entity.TwoFactorEnabled {
		return "", apperrors.New(apperrors.ErrCodeTwoFAAlreadyActive, msgAlreadyEnabled)
	}

	if twoFactorType == TWO_FACTOR_TYPE_AUTHENTICATOR {
		link, err := s.authenticatorLink(subject, entity)
		if err != nil {
			return "", err
		}
		return link.Link, nil
	}
	return "", s.deliver(ctx, subject, entity)
}

// VerifyEnable checks the enrollment code and enables the method.
func (s *TwoFaService) VerifyEnable(ctx context.Context, subject Subject, twoFactorType, passcode string) error {
	if err := ValidateTwoFactorType(twoFactorType); err != nil {
		return err
	}
	entity, err := s.repo.Get2FAByLoginID(ctx, Get2FAByLoginIDParams{LoginID: subject.LoginID, TwoFactorType: twoFactorType})
	if errors.Is(err, ErrTwoFANotFound) {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "Request a verification code first")
	}
	if err != nil {
		return apperrors.InternalWrap(err, "failed to get 2FA record")
	}
	if entity.TwoFactorEnabled {
		return apperrors.New(apperrors.ErrCodeTwoFAAlreadyActive, msgAlreadyEnabled)
	}
	if err := s.checkPasscode(entity, passcode); err != nil {
		slog.Warn("Invalid 2FA enable code", "loginId", subject.LoginID, "twoFactorType", twoFactorType)
		return err
	}

	if err := s.repo.Enable2FA(ctx, Enable2FAParams{LoginID: subject.LoginID, TwoFactorType: twoFactorType}); err != nil {
		return apperrors.InternalWrap(err, "failed to enable 2FA")
	}
	slog.Info("2FA enabled", "loginId", subject.LoginID, "twoFactorType", twoFactorType)
	s.notifyEnabled(ctx, subject, twoFactorType)
	return nil
}

// Status lists the enabled methods of the caller.
func (s *TwoFaService) Status(ctx context.Context, subject Subject) (Status, error) {
	enabled, err := s.repo.FindEnabledTwoFAs(ctx, subject.LoginID)
	if err != nil {
		return Status{}, apperrors.InternalWrap(err, "failed to find enabled 2FA")
	}
	methods := make([]string, 0, len(enabled))
	for _, e := range enabled {
		methods = append(methods, e.TwoFactorType)
	}
	return Status{Enabled: len(methods) > 0, Methods: methods}, nil
}

// Disable turns off every enabled method of the caller.
func (s *TwoFaService) Disable(ctx context.Context, subject Subject) error {
	enabled, err := s.repo.FindEnabledTwoFAs(ctx, subject.LoginID)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to find enabled 2FA")
	}
	if len(enabled) == 0 {
		return apperrors.New(apperrors.ErrCodeTwoFANotEnabled, msgNotEnabled)
	}
	for _, e := range enabled {
		if err := s.repo.Disable2FA(ctx, Disable2FAParams{LoginID: subject.LoginID, TwoFactorType: e.TwoFactorType}); err != nil {
			return apperrors.InternalWrap(err, "failed to disable 2FA")
		}
	}
	slog.Info("2FA disabled", "loginId", subject.LoginID, "methods", len(enabled))
	return nil
}

func (s *TwoFaService) enabledRecord(ctx context.Context, loginID uuid.UUID, twoFactorType string) (TwoFAEntity, error) {
	entity, err := s.repo.Get2FAByLoginID(ctx, Get2FAByLoginIDParams{LoginID: loginID, TwoFactorType: twoFactorType})
	if errors.Is(err, ErrTwoFANotFound) || (err == nil && !entity.TwoFactorEnabled) {
		return TwoFAEntity{}, apperrors.New(apperrors.ErrCodeTwoFANotEnabled, msgNotEnabled)
	}
	if err != nil {
		return TwoFAEntity{}, apperrors.InternalWrap(err, "failed to get 2FA record")
	}
	return entity, nil
}

// ensureRecord returns the record of twoFactorType, creating a disabled one
// with a fresh secret when there is none.
func (s *TwoFaService) ensureRecord(ctx context.Context, subject Subject, twoFactorType string) (TwoFAEntity, error) {
	params := Get2FAByLoginIDParams{LoginID: subject.LoginID, TwoFactorType: twoFactorType}
	entity, err := s.repo.Get2FAByLoginID(ctx, params)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, ErrTwoFANotFound) {
		return TwoFAEntity{}, apperrors.InternalWrap(err, "failed to get 2FA record")
	}

	secret, err := GenerateTotpSecret(s.issuer, accountName(subject))
	if err != nil {
		return TwoFAEntity{}, apperrors.InternalWrap(err, "failed to generate 2FA secret")
	}
	if _, err := s.repo.Create2FAInit(ctx, Create2FAParams{
		LoginID:         subject.LoginID,
		TwoFactorType:   twoFactorType,
		TwoFactorSecret: secret,
	}); err != nil {
		// A concurrent request may have created it first.
		if entity, getErr := s.repo.Get2FAByLoginID(ctx, params); getErr == nil {
			return entity, nil
		}
		return TwoFAEntity{}, apperrors.InternalWrap(err, "failed to create 2FA record")
	}
	slog.Info("Created 2FA record", "loginId", subject.LoginID, "twoFactorType", twoFactorType)

	entity, err = s.repo.Get2FAByLoginID(ctx, params)
	if err != nil {
		return TwoFAEntity{}, apperrors.InternalWrap(err, "failed to get 2FA record")
	}
	return entity, nil
}

func (s *TwoFaService) authenticatorLink(subject Subject, entity TwoFAEntity) (AuthenticatorLink, error) {
	key, err := TotpKey(s.issuer, accountName(subject), entity.TwoFactorSecret, s.totpPeriod)
	if err != nil {
		return AuthenticatorLink{}, apperrors.InternalWrap(err, "failed to build authenticator link")
	}
	link := AuthenticatorLink{Link: key.URL()}
	if s.qrSize > 0 {
		img, err := QRImage(key, s.qrSize)
		if err != nil {
			slog.Warn("Failed to render authenticator QR image", "loginId", subject.LoginID, "error", err)
		} else {
			link.QRImage = img
		}
	}
	return link, nil
}

func (s *TwoFaService) checkPasscode(entity TwoFAEntity, passcode string) error {
	valid, err := ValidatePasscode(entity.TwoFactorSecret, passcode, s.period(entity.TwoFactorType), s.clock.Now())
	if err != nil || !valid {
		return apperrors.New(apperrors.ErrCodeTwoFAInvalid, msgInvalidCode)
	}
	return nil
}

// deliver sends a fresh code for entity over its channel.
func (s *TwoFaService) deliver(ctx context.Context, subject Subject, entity TwoFAEntity) error {
	system, to := notification.EmailSystem, subject.Email
	if entity.TwoFactorType == TWO_FACTOR_TYPE_SMS {
		system, to = notification.SMSSystem, subject.PhoneNumber
	}
	if to == "" {
		return apperrors.Newf(apperrors.ErrCodeInvalidInput, "No %s on file for this account", destinationLabel(entity.TwoFactorType))
	}
	if s.notificationManager == nil || !s.notificationManager.HasNotifier(system) {
		return apperrors.New(apperrors.ErrCodeUnavailable, "Code delivery is not configured")
	}

	if s.limiter != nil {
		key := subject.LoginID.String() + ":" + entity.TwoFactorType
		if ok, wait := s.limiter.Reserve(key); !ok {
			slog.Warn("2FA send rate limited", "loginId", subject.LoginID, "twoFactorType", entity.TwoFactorType, "wait", wait)
			return apperrors.RateLimitExceeded(strconv.Itoa(int(math.Max(1, math.Ceil(wait.Seconds())))))
		}
	}

	passcode, err := GeneratePasscode(entity.TwoFactorSecret, s.codePeriod, s.clock.Now())
	if err != nil {
		return apperrors.InternalWrap(err, "failed to generate 2FA passcode")
	}

	err = s.notificationManager.Send(ctx, notification.TwofaCodeNotice, system, notification.NotificationData{
		To: to,
		Data: map[string]string{
			"TwofaPasscode": passcode,
			"ExpiresIn":     expiresIn(s.codePeriod),
			"Method":        entity.TwoFactorType,
		},
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "Failed to send verification code")
	}
	slog.Info("Sent 2FA passcode", "loginId", subject.LoginID, "twoFactorType", entity.TwoFactorType)
	return nil
}

func (s *TwoFaService) notifyEnabled(ctx context.Context, subject Subject, twoFactorType string) {
	if s.notificationManager == nil || subject.Email == "" || !s.notificationManager.HasNotifier(notification.EmailSystem) {
		return
	}
	err := s.notificationManager.Send(ctx, notification.TwofaEnabledNotice, notification.EmailSystem, notification.NotificationData{
		To:   subject.Email,
		Data: map[string]string{"Method": methodLabel(twoFactorType)},
	})
	if err != nil {
		slog.Warn("Failed to send 2FA enabled notice", "loginId", subject.LoginID, "error", err)
	}
}

func accountName(subject Subject) string {
	if subject.Email != "" {
		return subject.Email
	}
	return subject.LoginID.String()
}

func destinationLabel(twoFactorType string) string {
	if twoFactorType == TWO_FACTOR_TYPE_SMS {
		return "phone number"
	}
	return "email address"
}

func methodLabel(twoFactorType string) string {
	switch twoFactorType {
	case TWO_FACTOR_TYPE_SMS:
		return "SMS"
	case TWO_FACTOR_TYPE_AUTHENTICATOR:
		return "an authenticator app"
	default:
		return "email"
	}
}

func expiresIn(period uint) string {
	if period%60 == 0 {
		if period == 60 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", period/60)
	}
	return fmt.Sprintf("%d seconds", period)
}
