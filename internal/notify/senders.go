package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// ChannelSender delivers to one channel type and reports the outcome. A
// sender never panics the fan-out; configuration and delivery failures come
// back as a failed DispatchResult.
type ChannelSender interface {
	Send(ctx context.Context, channel models.NotificationChannelConfig, event models.AlertEvent) models.DispatchResult
}

// The webhook-style senders below validate channel configuration and return
// a synthetic success without a network call. Real delivery for these types
// lands in a later rollout phase; dispatch accounting and preference
// resolution are already exercised end to end.

// SlackSender is the slack_webhook stub sender.
type SlackSender struct{}

// Send validates the webhook URL and reports a synthetic success.
func (SlackSender) Send(_ context.Context, channel models.NotificationChannelConfig, _ models.AlertEvent) models.DispatchResult {
	return stubSend(channel, channel.WebhookURL, "slack webhook channel has no URL configured")
}

// WebhookSender is the http_webhook stub sender.
type WebhookSender struct{}

// Send validates the webhook URL and reports a synthetic success.
func (WebhookSender) Send(_ context.Context, channel models.NotificationChannelConfig, _ models.AlertEvent) models.DispatchResult {
	return stubSend(channel, channel.WebhookURL, "webhook channel has no URL configured")
}

// PagerDutySender is the pagerduty stub sender.
type PagerDutySender struct{}

// Send validates the routing key and reports a synthetic success.
func (PagerDutySender) Send(_ context.Context, channel models.NotificationChannelConfig, _ models.AlertEvent) models.DispatchResult {
	return stubSend(channel, channel.RoutingKey, "pagerduty channel has no routing key configured")
}

func stubSend(channel models.NotificationChannelConfig, destination, missingMsg string) models.DispatchResult {
	result := models.DispatchResult{
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
		Destination: destination,
		SentAt:      time.Now().UTC(),
	}
	if destination == "" {
		result.Error = missingMsg
		return result
	}
	result.Success = true
	result.MessageID = "stub-" + uuid.NewString()
	return result
}
