package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tendant/simple-2fa/pkg/config"
	"github.com/tendant/simple-2fa/pkg/notification"
	"github.com/tendant/simple-2fa/pkg/twofa"
)

// twofa-notifytest sends one verification code through the provider the
// server would use, to check SMTP or Twilio settings without a login.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	config.LoadEnvFile()

	system := flag.String("system", "email", "Delivery system: email or sms")
	to := flag.String("to", "", "Recipient email address or E.164 phone number")
	flag.Parse()

	if *to == "" {
		fmt.Println("Error: -to is required")
		os.Exit(1)
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	var provider notification.NotificationManagerOption
	switch notification.NotificationSystem(*system) {
	case notification.EmailSystem:
		if !cfg.Email.IsConfigured() {
			fmt.Println("Error: EMAIL_HOST is not set")
			os.Exit(1)
		}
		provider = notification.WithSMTP(cfg.Email.ToSMTPConfig())
	case notification.SMSSystem:
		if !cfg.Twilio.IsConfigured() {
			fmt.Println("Error: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM must be set")
			os.Exit(1)
		}
		provider = notification.WithTwilio(cfg.Twilio.ToNotificationTwilioConfig())
	default:
		fmt.Printf("Error: unknown system %q, must be email or sms\n", *system)
		os.Exit(1)
	}

	nm, err := notification.NewNotificationManagerWithOptions(provider, notification.WithTwofaCodeTemplates())
	if err != nil {
		slog.Error("Failed to create notification manager", "err", err)
		os.Exit(1)
	}

	period, err := cfg.TOTP.ParseCodePeriod()
	if err != nil {
		slog.Error("Invalid code period", "err", err)
		os.Exit(1)
	}
	secret, err := twofa.GenerateTotpSecret(cfg.TOTP.Issuer, *to)
	if err != nil {
		slog.Error("Failed to generate secret", "err", err)
		os.Exit(1)
	}
	passcode, err := twofa.GeneratePasscode(secret, period, time.Now())
	if err != nil {
		slog.Error("Failed to generate passcode", "err", err)
		os.Exit(1)
	}

	err = nm.Send(context.Background(), notification.TwofaCodeNotice, notification.NotificationSystem(*system), notification.NotificationData{
		To: *to,
		Data: map[string]string{
			"TwofaPasscode": passcode,
			"ExpiresIn":     fmt.Sprintf("%d seconds", period),
			"Method":        *system,
		},
	})
	if err != nil {
		slog.Error("Failed to send code", "system", *system, "to", *to, "err", err)
		os.Exit(1)
	}

	fmt.Printf("Code %s sent to %s via %s\n", passcode, *to, *system)
}
