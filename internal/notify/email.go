package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/models"
	"github.com/pulsewatch/pulse-alerting/internal/repo"
)

// Mailer is the transactional email collaborator contract.
type Mailer interface {
	Send(ctx context.Context, msg repo.EmailMessage) (string, error)
	IsConfigured() bool
}

// EmailSender delivers alerts to email channels through the Mailer.
type EmailSender struct {
	mailer Mailer
}

// NewEmailSender constructs an email sender.
func NewEmailSender(mailer Mailer) *EmailSender {
	return &EmailSender{mailer: mailer}
}

// Send renders and submits the alert email for one channel.
func (s *EmailSender) Send(ctx context.Context, channel models.NotificationChannelConfig, event models.AlertEvent) models.DispatchResult {
	result := models.DispatchResult{
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
		Destination: channel.EmailAddress,
		SentAt:      time.Now().UTC(),
	}

	if channel.EmailAddress == "" {
		result.Error = "email channel has no address configured"
		return result
	}
	if s.mailer == nil || !s.mailer.IsConfigured() {
		result.Error = "email provider not configured"
		return result
	}

	msg := repo.EmailMessage{
		To:       channel.EmailAddress,
		Subject:  fmt.Sprintf("[%s] %s", strings.ToUpper(string(event.Severity)), event.Title),
		HTMLBody: renderHTML(event),
		TextBody: renderText(event),
	}

	messageID, err := s.mailer.Send(ctx, msg)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.MessageID = messageID
	return result
}

// renderHTML builds the HTML body. Every user-supplied field (title,
// message, context values) is escaped; tenants control that text.
func renderHTML(event models.AlertEvent) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(event.Title))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(event.Message))
	fmt.Fprintf(&b, "<p><strong>Metric:</strong> %s<br/>", html.EscapeString(event.MetricKey))
	fmt.Fprintf(&b, "<strong>Severity:</strong> %s<br/>", html.EscapeString(string(event.Severity)))
	fmt.Fprintf(&b, "<strong>Triggered:</strong> %s</p>", event.OccurredAt.Format(time.RFC1123))

	if len(event.Context) > 0 {
		b.WriteString("<ul>")
		for _, key := range sortedKeys(event.Context) {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>",
				html.EscapeString(key), html.EscapeString(event.Context[key]))
		}
		b.WriteString("</ul>")
	}

	b.WriteString("</body></html>")
	return b.String()
}

// renderText builds the plain-text body from the same fields; no escaping
// is needed here.
func renderText(event models.AlertEvent) string {
	var b strings.Builder
	b.WriteString(event.Title)
	b.WriteString("\n\n")
	b.WriteString(event.Message)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Metric: %s\n", event.MetricKey)
	fmt.Fprintf(&b, "Severity: %s\n", event.Severity)
	fmt.Fprintf(&b, "Triggered: %s\n", event.OccurredAt.Format(time.RFC1123))

	for _, key := range sortedKeys(event.Context) {
		fmt.Fprintf(&b, "%s: %s\n", key, event.Context[key])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
