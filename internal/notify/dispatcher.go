package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/metrics"
	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// IncidentCorrelator groups an alert into an incident before notification.
type IncidentCorrelator interface {
	FindOrCreateIncident(ctx context.Context, event models.AlertEvent, windowMinutes int) (models.AlertIncident, error)
}

// Dispatcher orchestrates one alert delivery: correlate, resolve channels,
// fan out to senders, aggregate results.
type Dispatcher struct {
	logger        *slog.Logger
	resolver      *PreferenceResolver
	correlator    IncidentCorrelator
	store         ConfigStore
	senders       map[models.ChannelType]ChannelSender
	windowMinutes int
	touchTimeout  time.Duration

	// background tracks detached last-used updates so tests can wait for
	// them to finish.
	background sync.WaitGroup
}

// NewDispatcher constructs a dispatcher. correlator may be nil; dispatch
// then proceeds without incident association.
func NewDispatcher(
	logger *slog.Logger,
	resolver *PreferenceResolver,
	correlator IncidentCorrelator,
	store ConfigStore,
	mailer Mailer,
	windowMinutes int,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:     logger,
		resolver:   resolver,
		correlator: correlator,
		store:      store,
		senders: map[models.ChannelType]ChannelSender{
			models.ChannelEmail:        NewEmailSender(mailer),
			models.ChannelSlackWebhook: SlackSender{},
			models.ChannelHTTPWebhook:  WebhookSender{},
			models.ChannelPagerDuty:    PagerDutySender{},
		},
		windowMinutes: windowMinutes,
		touchTimeout:  5 * time.Second,
	}
}

// DispatchAlert notifies every channel resolved for the event. Correlation
// failures are logged and never block notification; the only hard error is
// the channel-resolution read itself. Zero resolved channels is a normal
// outcome, not a failure.
func (d *Dispatcher) DispatchAlert(ctx context.Context, event models.AlertEvent) (models.AlertDispatchSummary, error) {
	var incident *models.AlertIncident
	if d.correlator != nil {
		found, err := d.correlator.FindOrCreateIncident(ctx, event, d.windowMinutes)
		if err != nil {
			d.logger.Warn("incident correlation failed, dispatching without incident",
				slog.String("event_id", event.ID),
				slog.Any("error", err))
		} else {
			incident = &found
		}
	}

	channels, err := d.resolver.ChannelsForAlert(ctx, event)
	if err != nil {
		return models.AlertDispatchSummary{}, fmt.Errorf("resolve channels: %w", err)
	}

	summary := models.AlertDispatchSummary{
		ChannelsSelected: len(channels),
		Results:          make([]models.DispatchResult, len(channels)),
		Incident:         incident,
	}
	if len(channels) == 0 {
		summary.Results = []models.DispatchResult{}
		return summary, nil
	}

	// Fan out per channel; each send resolves independently and a failure
	// never aborts the rest. Sends are not cancelled once started.
	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(i int, channel models.NotificationChannelConfig) {
			defer wg.Done()
			summary.Results[i] = d.sendToChannel(ctx, channel, event)
		}(i, channel)
	}
	wg.Wait()

	for _, result := range summary.Results {
		if result.Success {
			summary.ChannelsNotified++
			d.touchLastUsed(event.OrgID, result)
		} else {
			summary.ChannelsFailed++
			d.logger.Warn("channel delivery failed",
				slog.String("event_id", event.ID),
				slog.String("channel_id", result.ChannelID),
				slog.String("channel_type", string(result.ChannelType)),
				slog.String("error", result.Error))
		}
	}
	return summary, nil
}

func (d *Dispatcher) sendToChannel(ctx context.Context, channel models.NotificationChannelConfig, event models.AlertEvent) models.DispatchResult {
	sender, ok := d.senders[channel.Type]
	if !ok {
		return models.DispatchResult{
			ChannelID:   channel.ID,
			ChannelType: channel.Type,
			Destination: channel.Destination(),
			Error:       fmt.Sprintf("unsupported channel type %q", channel.Type),
			SentAt:      time.Now().UTC(),
		}
	}

	result := sender.Send(ctx, channel, event)
	outcome := metrics.OutcomeSuccess
	if !result.Success {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveChannelSend(string(channel.Type), outcome)
	return result
}

// touchLastUsed records the delivery time on the channel document as a
// detached background task with its own timeout and error logging.
func (d *Dispatcher) touchLastUsed(orgID string, result models.DispatchResult) {
	if d.store == nil {
		return
	}
	d.background.Add(1)
	go func() {
		defer d.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.touchTimeout)
		defer cancel()
		if err := d.store.TouchChannelLastUsed(ctx, orgID, result.ChannelID, result.SentAt); err != nil {
			d.logger.Warn("failed to record channel last-used time",
				slog.String("channel_id", result.ChannelID),
				slog.Any("error", err))
		}
	}()
}

// Flush blocks until detached background updates have completed.
func (d *Dispatcher) Flush() {
	d.background.Wait()
}
