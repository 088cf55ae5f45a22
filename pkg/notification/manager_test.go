package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/wneessen/go-mail"
)

func TestRegisterNotification(t *testing.T) {
	nm := NewNotificationManager()

	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:       "text and html",
			noticeType: ExampleNotice,
			system:     EmailSystem,
			template:   NoticeTemplate{Subject: "Example", Text: "text", Html: "<p>html</p>"},
		},
		{
			name:       "text only",
			noticeType: ExampleNotice,
			system:     SMSSystem,
			template:   NoticeTemplate{Text: "text"},
		},
		{
			name:        "empty notice type",
			system:      EmailSystem,
			template:    NoticeTemplate{Text: "text"},
			shouldError: true,
		},
		{
			name:        "empty system",
			noticeType:  ExampleNotice,
			template:    NoticeTemplate{Text: "text"},
			shouldError: true,
		},
		{
			name:        "no body",
			noticeType:  ExampleNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Example"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.template, nm.templates[tt.noticeType][tt.system])
		})
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	logNotifier := NewLogNotifier()
	nm, err := NewNotificationManagerWithOptions(
		WithNotifier(EmailSystem, logNotifier),
		WithNotifier(SMSSystem, logNotifier),
		WithDefaultTemplates(),
	)
	require.NoError(t, err)
	assert.True(t, nm.HasNotifier(EmailSystem))
	assert.False(t, nm.HasNotifier(LogSystem))

	err = nm.Send(ctx, TwofaCodeNotice, SMSSystem, NotificationData{
		To:   "+15551234567",
		Data: map[string]string{"TwofaPasscode": "012345"},
	})
	require.NoError(t, err)

	sent, ok := logNotifier.Last("+15551234567")
	require.True(t, ok)
	assert.Equal(t, "Your verification code is: 012345", sent.Body)

	err = nm.Send(ctx, TwofaCodeNotice, EmailSystem, NotificationData{
		To:   "jane@example.com",
		Data: map[string]string{"TwofaPasscode": "654321", "ExpiresIn": "5 minutes"},
	})
	require.NoError(t, err)
	sent, ok = logNotifier.Last("jane@example.com")
	require.True(t, ok)
	assert.Equal(t, "Your verification code", sent.Subject)
	assert.Contains(t, sent.Body, "654321")
	assert.Len(t, logNotifier.Sent(), 2)
}

func TestSendErrors(t *testing.T) {
	ctx := context.Background()
	nm := NewNotificationManager()

	err := nm.Send(ctx, ExampleNotice, EmailSystem, NotificationData{To: "a@example.com"})
	assert.ErrorContains(t, err, "no templates registered")

	require.NoError(t, nm.RegisterNotification(ExampleNotice, EmailSystem, NoticeTemplate{Text: "hi"}))
	err = nm.Send(ctx, ExampleNotice, SMSSystem, NotificationData{To: "+15551234567"})
	assert.ErrorContains(t, err, "no template registered for system")

	err = nm.Send(ctx, ExampleNotice, EmailSystem, NotificationData{To: "a@example.com"})
	assert.ErrorContains(t, err, "no notifier registered")

	nm.RegisterNotifier(EmailSystem, NewLogNotifier())
	err = nm.Send(ctx, ExampleNotice, EmailSystem, NotificationData{})
	assert.Error(t, err)
}

type fakeMailSender struct {
	msgs []*mail.Msg
	err  error
}

func (f *fakeMailSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.msgs = append(f.msgs, messages...)
	return f.err
}

func TestEmailNotifier(t *testing.T) {
	ctx := context.Background()
	sender := &fakeMailSender{}
	e := &EmailNotifier{SMTPConfig: SMTPConfig{From: "noreply@example.com"}, client: sender}

	err := e.Send(ctx, TwofaCodeNotice, NotificationData{
		To:      "jane@example.com",
		Subject: "Your verification code",
		Body:    "Your verification code is: 123456",
		Data:    map[string]string{"TwofaPasscode": "123456"},
	}, NoticeTemplate{Html: "<p>{{.TwofaPasscode}}</p>"})
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)

	rcpts, err := sender.msgs[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, rcpts)
	assert.Equal(t, []string{"Your verification code"}, sender.msgs[0].GetGenHeader(mail.HeaderSubject))

	err = e.Send(ctx, TwofaCodeNotice, NotificationData{Body: "x"}, NoticeTemplate{})
	assert.Error(t, err)

	sender.err = errors.New("connection refused")
	err = e.Send(ctx, TwofaCodeNotice, NotificationData{To: "jane@example.com", Body: "x"}, NoticeTemplate{})
	assert.Error(t, err)
}

type fakeMessageCreator struct {
	params []*twilioApi.CreateMessageParams
}

func (f *fakeMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestSMSNotifier(t *testing.T) {
	ctx := context.Background()
	api := &fakeMessageCreator{}
	s := &SMSNotifier{api: api, TwilioConfig: TwilioConfig{TwilioFrom: "+15005550006"}}

	require.NoError(t, s.Send(ctx, TwofaCodeNotice, NotificationData{To: "+15551234567", Body: "code 123456"}, NoticeTemplate{}))
	require.Len(t, api.params, 1)
	assert.Equal(t, "+15551234567", *api.params[0].To)
	assert.Equal(t, "+15005550006", *api.params[0].From)
	assert.Equal(t, "code 123456", *api.params[0].Body)

	assert.Error(t, s.Send(ctx, TwofaCodeNotice, NotificationData{To: "+15551234567"}, NoticeTemplate{}))
}
