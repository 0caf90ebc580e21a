package models

import "time"

// ChannelType enumerates supported notification channel kinds.
type ChannelType string

const (
	ChannelEmail        ChannelType = "email"
	ChannelSlackWebhook ChannelType = "slack_webhook"
	ChannelHTTPWebhook  ChannelType = "http_webhook"
	ChannelPagerDuty    ChannelType = "pagerduty"
)

// NotificationChannelConfig is a configured delivery destination. The
// destination fields are type-specific; only the ones matching Type are set.
type NotificationChannelConfig struct {
	ID           string      `json:"id"`
	OrgID        string      `json:"orgId"`
	Type         ChannelType `json:"type"`
	Enabled      bool        `json:"enabled"`
	EmailAddress string      `json:"emailAddress,omitempty"`
	WebhookURL   string      `json:"webhookUrl,omitempty"`
	RoutingKey   string      `json:"routingKey,omitempty"`
	LastUsedAt   *time.Time  `json:"lastUsedAt,omitempty"`
}

// Destination returns the channel's type-specific delivery target.
func (c NotificationChannelConfig) Destination() string {
	switch c.Type {
	case ChannelEmail:
		return c.EmailAddress
	case ChannelSlackWebhook, ChannelHTTPWebhook:
		return c.WebhookURL
	case ChannelPagerDuty:
		return c.RoutingKey
	}
	return ""
}

// NotificationPreference maps a severity and metric pattern to channels.
// An empty MetricPattern matches every metric.
type NotificationPreference struct {
	ID            string   `json:"id"`
	OrgID         string   `json:"orgId"`
	Severity      Severity `json:"severity"`
	MetricPattern string   `json:"metricPattern,omitempty"`
	ChannelIDs    []string `json:"channels"`
	Enabled       bool     `json:"enabled"`
}

// DispatchResult is the per-channel outcome of one alert dispatch.
type DispatchResult struct {
	Success     bool        `json:"success"`
	ChannelID   string      `json:"channelId"`
	ChannelType ChannelType `json:"channelType"`
	Destination string      `json:"destination"`
	MessageID   string      `json:"messageId,omitempty"`
	Error       string      `json:"error,omitempty"`
	SentAt      time.Time   `json:"sentAt"`
}

// AlertDispatchSummary aggregates the outcome of a full dispatch fan-out.
// ChannelsSelected always equals ChannelsNotified + ChannelsFailed.
type AlertDispatchSummary struct {
	ChannelsSelected int              `json:"channelsSelected"`
	ChannelsNotified int              `json:"channelsNotified"`
	ChannelsFailed   int              `json:"channelsFailed"`
	Results          []DispatchResult `json:"results"`
	Incident         *AlertIncident   `json:"incident,omitempty"`
}
