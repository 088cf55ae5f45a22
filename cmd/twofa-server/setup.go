package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-2fa/pkg/config"
	"github.com/tendant/simple-2fa/pkg/notification"
	"github.com/tendant/simple-2fa/pkg/ratelimit"
	"github.com/tendant/simple-2fa/pkg/twofa"
	"github.com/tendant/simple-2fa/pkg/twofa/api"
	"github.com/tendant/simple-2fa/pkg/twofaclient"
)

// newNotificationManager wires SMTP and Twilio when configured. Channels
// without a provider fall back to a log notifier so codes can still be read
// during development.
func newNotificationManager(cfg config.ServerConfig) (*notification.NotificationManager, error) {
	opts := []notification.NotificationManagerOption{notification.WithDefaultTemplates()}

	var logNotifier *notification.LogNotifier
	fallback := func(system notification.NotificationSystem) {
		if logNotifier == nil {
			logNotifier = notification.NewLogNotifier()
		}
		slog.Warn("No provider configured, codes will only be logged", "system", system)
		opts = append(opts, notification.WithNotifier(system, logNotifier))
	}

	if cfg.Email.IsConfigured() {
		opts = append(opts, notification.WithSMTP(cfg.Email.ToSMTPConfig()))
	} else {
		fallback(notification.EmailSystem)
	}
	if cfg.Twilio.IsConfigured() {
		opts = append(opts, notification.WithTwilio(cfg.Twilio.ToNotificationTwilioConfig()))
	} else {
		fallback(notification.SMSSystem)
	}

	nm, err := notification.NewNotificationManagerWithOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification manager: %w", err)
	}
	return nm, nil
}

// newTwoFactorService builds the service for cfg. db is only used for
// postgres persistence. The returned func releases background resources.
func newTwoFactorService(cfg config.ServerConfig, db twofa.DBTX) (twofa.TwoFactorService, func(), error) {
	if !cfg.Enabled {
		slog.Info("Two-factor authentication is disabled")
		return twofa.NewNoOpTwoFactorService(), func() {}, nil
	}

	repo, err := twofa.NewTwoFARepository(cfg.Persistence.Type, twofa.RepositoryConfig{
		DB:      db,
		DataDir: cfg.Persistence.DataDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create 2FA repository: %w", err)
	}

	nm, err := newNotificationManager(cfg)
	if err != nil {
		return nil, nil, err
	}

	codePeriod, err := cfg.TOTP.ParseCodePeriod()
	if err != nil {
		return nil, nil, err
	}
	refillRate, err := cfg.SendRateLimit.RefillRate()
	if err != nil {
		return nil, nil, err
	}
	sendLimiter := ratelimit.NewRateLimiter(cfg.SendRateLimit.Capacity, refillRate, time.Hour)

	service := twofa.NewTwoFaService(repo,
		twofa.WithIssuer(cfg.TOTP.Issuer),
		twofa.WithCodePeriod(codePeriod),
		twofa.WithQRImageSize(cfg.TOTP.QRSize),
		twofa.WithNotificationManager(nm),
		twofa.WithSendLimiter(sendLimiter),
	)
	return service, sendLimiter.Close, nil
}

// mountTwoFA mounts the 2FA API at its base path, behind the per-IP limiter
// when enabled.
func mountTwoFA(r chi.Router, cfg config.ServerConfig, service twofa.TwoFactorService, tokenAuth *jwtauth.JWTAuth) func() {
	handler := api.TwoFaHandler(api.NewHandle(service), tokenAuth)
	if !cfg.HTTPRateLimit.Enabled {
		r.Mount(twofaclient.BasePath, handler)
		return func() {}
	}

	limiter := ratelimit.NewMiddleware(cfg.HTTPRateLimit.ToRateLimitConfig(), ratelimit.ClientIP)
	r.Mount(twofaclient.BasePath, limiter.Handler(handler))
	return limiter.Close
}
