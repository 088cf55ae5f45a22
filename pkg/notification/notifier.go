package notification

import "context"

// NotificationSystem is a delivery channel.
type NotificationSystem string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"
	LogSystem   NotificationSystem = "log"
)

// NoticeType identifies what is being sent.
type NoticeType string

const (
	TwofaCodeNotice    NoticeType = "twofa_code"
	TwofaEnabledNotice NoticeType = "twofa_enabled"
	ExampleNotice      NoticeType = "example"
)

// NoticeTemplate holds the templates for one notice on one system. Text and
// Html are executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type NotificationData struct {
	To      string            // Recipient (email address or E.164 phone number)
	Subject string            // Overrides the template subject when set
	Body    string            // Pre-rendered body; set by the manager from Text when empty
	Data    map[string]string // Template values
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, data NotificationData, template NoticeTemplate) error
}
