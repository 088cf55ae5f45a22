package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// LogNotifier writes notifications to slog instead of delivering them and
// keeps every message it was given.
type LogNotifier struct {
	mu   sync.Mutex
	sent []NotificationData
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("notification requires 'To'")
	}
	l.mu.Lock()
	l.sent = append(l.sent, notification)
	l.mu.Unlock()

	slog.Info("Notification", "type", noticeType, "to", notification.To, "subject", notification.Subject, "body", notification.Body)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (l *LogNotifier) Sent() []NotificationData {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]NotificationData(nil), l.sent...)
}

// Last returns the most recent message sent to recipient.
func (l *LogNotifier) Last(to string) (NotificationData, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.sent) - 1; i >= 0; i-- {
		if l.sent[i].To == to {
			return l.sent[i], true
		}
	}
	return NotificationData{}, false
}
