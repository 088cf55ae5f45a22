package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithTwilio adds an SMS notifier with the provided Twilio configuration
func WithTwilio(config TwilioConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(SMSSystem, NewSMSNotifier(config))
		return nil
	}
}

// WithNotifier registers notifier for system, e.g. a LogNotifier in place of
// real delivery during development.
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithTwofaCodeTemplates registers the one-time code templates for email and SMS
func WithTwofaCodeTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if err := nm.RegisterNotification(TwofaCodeNotice, EmailSystem, NoticeTemplate{
			Subject: "Your verification code",
			Text:    "Your verification code is: {{.TwofaPasscode}}. It expires in {{.ExpiresIn}}.",
			Html:    loadTemplate("templates/email/twofa_code.html"),
		}); err != nil {
			return err
		}
		return nm.RegisterNotification(TwofaCodeNotice, SMSSystem, NoticeTemplate{
			Text: "Your verification code is: {{.TwofaPasscode}}",
		})
	}
}

// WithTwofaEnabledTemplate registers the confirmation sent after 2FA is enabled
func WithTwofaEnabledTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaEnabledNotice, EmailSystem, NoticeTemplate{
			Subject: "Two-factor authentication enabled",
			Text:    "Two-factor authentication using {{.Method}} has been enabled on your account.",
			Html:    loadTemplate("templates/email/twofa_enabled.html"),
		})
	}
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		for _, opt := range []NotificationManagerOption{
			WithTwofaCodeTemplates(),
			WithTwofaEnabledTemplate(),
		} {
			if err := opt(nm); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager()
	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}
	return notificationManager, nil
}
