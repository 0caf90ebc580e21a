package incident

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// Store defines the incident persistence operations the correlator needs.
type Store interface {
	GetIncident(ctx context.Context, orgID, id string) (*models.AlertIncident, error)
	QueryOpenIncidents(ctx context.Context, orgID string, startedAfter time.Time) ([]models.AlertIncident, error)
	PutIncident(ctx context.Context, orgID string, incident models.AlertIncident) error
	UpdateIncident(ctx context.Context, orgID, id string, fields map[string]any) error
}

// DefaultTimeWindowMinutes bounds how far back an alert looks for an open
// incident to join.
const DefaultTimeWindowMinutes = 10

// Correlator groups temporally and metric-related alert events into
// incidents. It is the only writer of incident documents.
//
// Two concurrent FindOrCreateIncident calls for the same metric and window
// can each miss the other's uncommitted incident and create two; serializing
// that write path is left to the store's transaction primitive.
type Correlator struct {
	logger *slog.Logger
	store  Store
	clock  func() time.Time
}

// NewCorrelator constructs a Correlator.
func NewCorrelator(logger *slog.Logger, store Store) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{logger: logger, store: store, clock: time.Now}
}

// FindOrCreateIncident attaches the event to an open incident in the same
// tenant that started inside the time window and already involves the
// event's metric, or creates a new one. windowMinutes <= 0 uses the default.
func (c *Correlator) FindOrCreateIncident(ctx context.Context, event models.AlertEvent, windowMinutes int) (models.AlertIncident, error) {
	if c.store == nil {
		return models.AlertIncident{}, fmt.Errorf("incident store not configured")
	}
	if windowMinutes <= 0 {
		windowMinutes = DefaultTimeWindowMinutes
	}

	since := event.OccurredAt.Add(-time.Duration(windowMinutes) * time.Minute)
	open, err := c.store.QueryOpenIncidents(ctx, event.OrgID, since)
	if err != nil {
		return models.AlertIncident{}, fmt.Errorf("query open incidents: %w", err)
	}

	for _, candidate := range open {
		if !containsString(candidate.RelatedMetrics, event.MetricKey) {
			continue
		}
		updated := c.attach(candidate, event)
		fields := map[string]any{
			"alertEventIds":  updated.AlertEventIDs,
			"relatedMetrics": updated.RelatedMetrics,
			"summary":        updated.Summary,
			"updatedAt":      updated.UpdatedAt.Format(time.RFC3339),
		}
		if err := c.store.UpdateIncident(ctx, event.OrgID, updated.ID, fields); err != nil {
			return models.AlertIncident{}, fmt.Errorf("update incident %s: %w", updated.ID, err)
		}
		c.logger.Debug("alert correlated into incident",
			slog.String("incident_id", updated.ID),
			slog.String("metric", event.MetricKey),
			slog.Int("alerts", len(updated.AlertEventIDs)))
		return updated, nil
	}

	incident := models.AlertIncident{
		ID:             uuid.NewString(),
		OrgID:          event.OrgID,
		Title:          event.Title,
		Status:         models.IncidentOpen,
		StartedAt:      event.OccurredAt,
		UpdatedAt:      c.clock().UTC(),
		AlertEventIDs:  []string{event.ID},
		RelatedMetrics: []string{event.MetricKey},
		CorrelationMetadata: models.CorrelationMetadata{
			TimeWindowMinutes: windowMinutes,
		},
	}
	incident.Summary = summarize(incident)

	if err := c.store.PutIncident(ctx, event.OrgID, incident); err != nil {
		return models.AlertIncident{}, fmt.Errorf("create incident: %w", err)
	}
	c.logger.Debug("incident created",
		slog.String("incident_id", incident.ID),
		slog.String("metric", event.MetricKey))
	return incident, nil
}

// Acknowledge moves an open incident to acknowledged.
func (c *Correlator) Acknowledge(ctx context.Context, orgID, id string) (models.AlertIncident, error) {
	return c.transition(ctx, orgID, id, models.IncidentAcknowledged)
}

// Resolve moves an open or acknowledged incident to resolved and stamps
// resolvedAt. A resolved incident never transitions again.
func (c *Correlator) Resolve(ctx context.Context, orgID, id string) (models.AlertIncident, error) {
	return c.transition(ctx, orgID, id, models.IncidentResolved)
}

func (c *Correlator) transition(ctx context.Context, orgID, id string, target models.IncidentStatus) (models.AlertIncident, error) {
	if c.store == nil {
		return models.AlertIncident{}, fmt.Errorf("incident store not configured")
	}

	incident, err := c.store.GetIncident(ctx, orgID, id)
	if err != nil {
		return models.AlertIncident{}, fmt.Errorf("get incident %s: %w", id, err)
	}
	if incident == nil {
		return models.AlertIncident{}, fmt.Errorf("incident %s not found", id)
	}
	if !validTransition(incident.Status, target) {
		return models.AlertIncident{}, fmt.Errorf("incident %s: illegal transition %s -> %s", id, incident.Status, target)
	}

	now := c.clock().UTC()
	incident.Status = target
	incident.UpdatedAt = now
	fields := map[string]any{
		"status":    target,
		"updatedAt": now.Format(time.RFC3339),
	}
	if target == models.IncidentResolved {
		incident.ResolvedAt = &now
		fields["resolvedAt"] = now.Format(time.RFC3339)
	}

	if err := c.store.UpdateIncident(ctx, orgID, id, fields); err != nil {
		return models.AlertIncident{}, fmt.Errorf("update incident %s: %w", id, err)
	}
	return *incident, nil
}

func validTransition(from, to models.IncidentStatus) bool {
	switch from {
	case models.IncidentOpen:
		return to == models.IncidentAcknowledged || to == models.IncidentResolved
	case models.IncidentAcknowledged:
		return to == models.IncidentResolved
	}
	return false
}

func (c *Correlator) attach(incident models.AlertIncident, event models.AlertEvent) models.AlertIncident {
	incident.AlertEventIDs = appendUnique(incident.AlertEventIDs, event.ID)
	incident.RelatedMetrics = appendUnique(incident.RelatedMetrics, event.MetricKey)
	incident.Summary = summarize(incident)
	incident.UpdatedAt = c.clock().UTC()
	return incident
}

// summarize renders the human-facing incident summary.
func summarize(incident models.AlertIncident) string {
	alerts := len(incident.AlertEventIDs)
	if alerts == 1 {
		metric := ""
		if len(incident.RelatedMetrics) > 0 {
			metric = incident.RelatedMetrics[0]
		}
		return fmt.Sprintf("1 alert for %s", metric)
	}
	return fmt.Sprintf("%d alerts across %d metric(s): %s",
		alerts, len(incident.RelatedMetrics), strings.Join(incident.RelatedMetrics, ", "))
}

// CorrelateAlerts groups events offline: sorted by trigger time, an event
// joins the current group while it falls within the window of the group's
// first event. The anchor is fixed per group, not sliding.
func CorrelateAlerts(events []models.AlertEvent, windowMinutes int) []models.AlertGroup {
	if len(events) == 0 {
		return nil
	}
	if windowMinutes <= 0 {
		windowMinutes = DefaultTimeWindowMinutes
	}
	window := time.Duration(windowMinutes) * time.Minute

	sorted := append([]models.AlertEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	groups := make([]models.AlertGroup, 0, 1)
	current := newGroup(sorted[0])
	for _, event := range sorted[1:] {
		if event.OccurredAt.Sub(current.StartedAt) <= window {
			current.Events = append(current.Events, event)
			current.MetricKeys = appendUnique(current.MetricKeys, event.MetricKey)
			current.EndedAt = event.OccurredAt
			continue
		}
		groups = append(groups, current)
		current = newGroup(event)
	}
	return append(groups, current)
}

func newGroup(event models.AlertEvent) models.AlertGroup {
	return models.AlertGroup{
		Events:     []models.AlertEvent{event},
		MetricKeys: []string{event.MetricKey},
		StartedAt:  event.OccurredAt,
		EndedAt:    event.OccurredAt,
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func appendUnique(values []string, items ...string) []string {
	for _, item := range items {
		if !containsString(values, item) {
			values = append(values, item)
		}
	}
	return values
}
