// Package notification delivers one-time codes and other notices through
// pluggable channels.
//
// A NotificationManager maps a NotificationSystem (email, sms, log) to a
// Notifier and a NoticeType to a NoticeTemplate per system. Templates are Go
// text/html templates executed against NotificationData.Data.
//
// # Basic Usage
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//		notification.WithSMTP(smtpConfig),
//		notification.WithTwilio(twilioConfig),
//		notification.WithDefaultTemplates(),
//	)
//	if err != nil {
//		return err
//	}
//
//	err = nm.Send(ctx, notification.TwofaCodeNotice, notification.EmailSystem, notification.NotificationData{
//		To:   "jane@example.com",
//		Data: map[string]string{"TwofaPasscode": "123456"},
//	})
//
// # Notifiers
//
//   - EmailNotifier sends through SMTP using github.com/wneessen/go-mail
//   - SMSNotifier sends through the Twilio Messages API using github.com/twilio/twilio-go
//   - LogNotifier writes to slog and keeps the sent messages, for development and tests
package notification
