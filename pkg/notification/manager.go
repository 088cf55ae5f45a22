package notification

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"sync"
	"text/template"
)

// NotificationManager routes notices to notifiers using registered templates.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[NotificationSystem]Notifier
	templates map[NoticeType]map[NotificationSystem]NoticeTemplate
}

func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers: make(map[NotificationSystem]Notifier),
		templates: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers or replaces the notifier for system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// RegisterNotification registers or replaces the template of noticeType for system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, tmpl NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if tmpl.Text == "" && tmpl.Html == "" {
		return fmt.Errorf("invalid input: template for %s/%s has no body", noticeType, system)
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.templates[noticeType]; !exists {
		nm.templates[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.templates[noticeType][system] = tmpl
	return nil
}

// HasNotifier reports whether a notifier is registered for system.
func (nm *NotificationManager) HasNotifier(system NotificationSystem) bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	_, ok := nm.notifiers[system]
	return ok
}

// Send renders the template of noticeType for system and hands it to the
// system's notifier.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, system NotificationSystem, data NotificationData) error {
	nm.mu.RLock()
	systemTemplates, exists := nm.templates[noticeType]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	tmpl, exists := systemTemplates[system]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}
	notifier, exists := nm.notifiers[system]
	nm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	if data.Subject == "" {
		data.Subject = tmpl.Subject
	}
	if data.Body == "" && tmpl.Text != "" {
		body, err := renderText(tmpl.Text, data.Data)
		if err != nil {
			return fmt.Errorf("failed to render %s template: %w", noticeType, err)
		}
		data.Body = body
	}

	if err := notifier.Send(ctx, noticeType, data, tmpl); err != nil {
		slog.Error("Failed to send notification", "type", noticeType, "system", system, "err", err)
		return fmt.Errorf("failed to send %s via %s: %w", noticeType, system, err)
	}
	return nil
}

func renderText(text string, data map[string]string) (string, error) {
	tmpl, err := template.New("text").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(html string, data map[string]string) (string, error) {
	tmpl, err := htmltemplate.New("html").Parse(html)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
