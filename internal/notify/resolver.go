package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// ConfigStore defines the tenant-configuration reads the resolver needs.
// Preferences and channels are read-only from this package's perspective.
type ConfigStore interface {
	ListPreferences(ctx context.Context, orgID string) ([]models.NotificationPreference, error)
	GetChannel(ctx context.Context, orgID, id string) (*models.NotificationChannelConfig, error)
	TouchChannelLastUsed(ctx context.Context, orgID, id string, at time.Time) error
}

// PreferenceResolver maps an alert event to the concrete set of enabled
// channels whose preferences match the event's severity and metric key.
type PreferenceResolver struct {
	logger *slog.Logger
	store  ConfigStore
}

// NewPreferenceResolver constructs a resolver.
func NewPreferenceResolver(logger *slog.Logger, store ConfigStore) *PreferenceResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceResolver{logger: logger, store: store}
}

// ChannelsForAlert resolves the event to its delivery channels: enabled
// preferences with an exact severity match and a matching metric pattern,
// their channel IDs deduplicated in order, then resolved to enabled channel
// configs. Disabled or missing channels are skipped.
func (r *PreferenceResolver) ChannelsForAlert(ctx context.Context, event models.AlertEvent) ([]models.NotificationChannelConfig, error) {
	if r.store == nil {
		return nil, fmt.Errorf("config store not configured")
	}

	preferences, err := r.store.ListPreferences(ctx, event.OrgID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	var channelIDs []string
	seen := make(map[string]struct{})
	for _, pref := range preferences {
		if !pref.Enabled {
			continue
		}
		// Severity matching is exact; a warning preference never fires
		// for a critical event.
		if pref.Severity != event.Severity {
			continue
		}

		pattern, err := NewMetricPattern(pref.MetricPattern)
		if err != nil {
			r.logger.Warn("skipping preference with invalid metric pattern",
				slog.String("preference_id", pref.ID),
				slog.Any("error", err))
			continue
		}
		if !pattern.Matches(event.MetricKey) {
			continue
		}

		for _, id := range pref.ChannelIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			channelIDs = append(channelIDs, id)
		}
	}

	channels := make([]models.NotificationChannelConfig, 0, len(channelIDs))
	for _, id := range channelIDs {
		channel, err := r.store.GetChannel(ctx, event.OrgID, id)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %s: %w", id, err)
		}
		if channel == nil {
			r.logger.Warn("preference references missing channel",
				slog.String("org_id", event.OrgID),
				slog.String("channel_id", id))
			continue
		}
		if !channel.Enabled {
			continue
		}
		channels = append(channels, *channel)
	}
	return channels, nil
}
