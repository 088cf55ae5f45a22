package twofa

import (
	"github.com/tendant/simple-2fa/pkg/clock"
	"github.com/tendant/simple-2fa/pkg/notification"
	"github.com/tendant/simple-2fa/pkg/ratelimit"
)

// Option configures a TwoFaService
type Option func(*TwoFaService)

func WithClock(c clock.Clocker) Option {
	return func(s *TwoFaService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIssuer sets the issuer shown by authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *TwoFaService) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTotpPeriod sets the step, in seconds, of authenticator app codes.
func WithTotpPeriod(period uint) Option {
	return func(s *TwoFaService) {
		if period > 0 {
			s.totpPeriod = period
		}
	}
}

// WithCodePeriod sets the step, in seconds, of codes delivered by email or SMS.
func WithCodePeriod(period uint) Option {
	return func(s *TwoFaService) {
		if period > 0 {
			s.codePeriod = period
		}
	}
}

func WithNotificationManager(nm *notification.NotificationManager) Option {
	return func(s *TwoFaService) {
		s.notificationManager = nm
	}
}

// WithSendLimiter throttles code delivery per login and method.
func WithSendLimiter(limiter *ratelimit.RateLimiter) Option {
	return func(s *TwoFaService) {
		s.limiter = limiter
	}
}

// WithQRImageSize sets the edge of the enrollment QR image. Zero disables it.
func WithQRImageSize(size int) Option {
	return func(s *TwoFaService) {
		if size >= 0 {
			s.qrSize = size
		}
	}
}
