package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/evaluator"
	"github.com/pulsewatch/pulse-alerting/internal/forecast"
	"github.com/pulsewatch/pulse-alerting/internal/incident"
	"github.com/pulsewatch/pulse-alerting/internal/metrics"
	"github.com/pulsewatch/pulse-alerting/internal/models"
	"github.com/pulsewatch/pulse-alerting/internal/notify"
	"github.com/pulsewatch/pulse-alerting/internal/utils"
)

// IncidentHistory defines the storage operations the service needs beyond dispatch.
type IncidentHistory interface {
	QueryResolvedIncidents(ctx context.Context, orgID string, start, end time.Time) ([]models.AlertIncident, error)
}

// AlertingService is the orchestrating facade over forecasting, rule
// evaluation, and alert dispatch. Callers embed it in whatever transport
// they run; the service itself owns no wire protocol.
type AlertingService struct {
	logger     *slog.Logger
	engine     *forecast.Engine
	evaluator  *evaluator.Evaluator
	correlator *incident.Correlator
	dispatcher *notify.Dispatcher
	history    IncidentHistory
	latencies  *utils.LatencyTracker
	rules      map[string]evaluator.Rule
}

// NewAlertingService constructs the service facade.
func NewAlertingService(
	logger *slog.Logger,
	engine *forecast.Engine,
	eval *evaluator.Evaluator,
	correlator *incident.Correlator,
	dispatcher *notify.Dispatcher,
	history IncidentHistory,
) *AlertingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertingService{
		logger:     logger,
		engine:     engine,
		evaluator:  eval,
		correlator: correlator,
		dispatcher: dispatcher,
		history:    history,
		latencies:  utils.NewLatencyTracker(1024),
		rules:      map[string]evaluator.Rule{},
	}
}

// SetRulePack installs the configured rule pack. Rules without an ID are
// skipped; they cannot be addressed by callers.
func (s *AlertingService) SetRulePack(rules []evaluator.Rule) {
	s.rules = make(map[string]evaluator.Rule, len(rules))
	for _, rule := range rules {
		if rule.ID == "" {
			continue
		}
		s.rules[rule.ID] = rule
	}
}

// RuleByID looks up a rule from the installed pack.
func (s *AlertingService) RuleByID(id string) (evaluator.Rule, bool) {
	rule, ok := s.rules[id]
	return rule, ok
}

// Forecast projects future values for a metric series.
func (s *AlertingService) Forecast(points []models.TimeSeriesPoint, opts forecast.Options) (models.ForecastResult, error) {
	if s.engine == nil {
		return models.ForecastResult{}, utils.NewAppError("forecast", "engine not configured", nil)
	}

	start := time.Now()
	result, err := s.engine.Forecast(points, opts)
	if err != nil {
		return models.ForecastResult{}, err
	}
	metrics.ObserveForecast(result.ModelInfo.Name, time.Since(start))
	return result, nil
}

// DispatchAlert fans an alert event out to the org's notification channels,
// correlating it into an incident first.
func (s *AlertingService) DispatchAlert(ctx context.Context, event models.AlertEvent) (models.AlertDispatchSummary, error) {
	if s.dispatcher == nil {
		return models.AlertDispatchSummary{}, utils.NewAppError("dispatch_alert", "dispatcher not configured", nil)
	}
	if event.OrgID == "" {
		return models.AlertDispatchSummary{}, utils.NewAppError("dispatch_alert", "event orgId is required", nil)
	}
	if event.MetricKey == "" {
		return models.AlertDispatchSummary{}, utils.NewAppError("dispatch_alert", "event metricKey is required", nil)
	}
	if !models.ValidSeverity(event.Severity) {
		return models.AlertDispatchSummary{}, utils.NewAppError("dispatch_alert", "unknown severity "+string(event.Severity), nil)
	}

	start := time.Now()
	summary, err := s.dispatcher.DispatchAlert(ctx, event)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveDispatch(duration, metrics.OutcomeError)
		s.logger.Error("alert dispatch failed",
			slog.String("org_id", event.OrgID),
			slog.String("metric_key", event.MetricKey),
			slog.Any("error", err))
		return models.AlertDispatchSummary{}, err
	}
	s.latencies.Observe(duration)
	metrics.ObserveDispatch(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("dispatch latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return summary, nil
}

// EvaluateAndDispatch checks the most recent observed value against a rule
// and dispatches an alert when the rule fires. Returns nil when the rule
// does not fire.
func (s *AlertingService) EvaluateAndDispatch(ctx context.Context, rule evaluator.Rule, points []models.TimeSeriesPoint) (*models.AlertDispatchSummary, error) {
	if s.evaluator == nil {
		return nil, utils.NewAppError("evaluate_rule", "evaluator not configured", nil)
	}
	if len(points) == 0 {
		return nil, utils.NewAppError("evaluate_rule", "no observations for "+rule.MetricKey, nil)
	}

	latest := points[len(points)-1]
	event, fired := s.evaluator.EvaluateValue(rule, latest.Value, latest.Timestamp)
	if !fired {
		return nil, nil
	}

	summary, err := s.DispatchAlert(ctx, event)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ForecastAndDispatch forecasts the series and dispatches an alert for the
// first projected point that violates the rule, if any.
func (s *AlertingService) ForecastAndDispatch(ctx context.Context, rule evaluator.Rule, points []models.TimeSeriesPoint, opts forecast.Options) (*models.AlertDispatchSummary, error) {
	if s.evaluator == nil {
		return nil, utils.NewAppError("evaluate_forecast", "evaluator not configured", nil)
	}

	result, err := s.Forecast(points, opts)
	if err != nil {
		return nil, err
	}

	for _, point := range result.Predictions {
		event, fired := s.evaluator.EvaluateForecast(rule, point)
		if !fired {
			continue
		}
		summary, dispatchErr := s.DispatchAlert(ctx, event)
		if dispatchErr != nil {
			return nil, dispatchErr
		}
		return &summary, nil
	}
	return nil, nil
}

// AcknowledgeIncident moves an open incident to acknowledged.
func (s *AlertingService) AcknowledgeIncident(ctx context.Context, orgID, id string) (models.AlertIncident, error) {
	if s.correlator == nil {
		return models.AlertIncident{}, utils.NewAppError("acknowledge_incident", "correlator not configured", nil)
	}
	return s.correlator.Acknowledge(ctx, orgID, id)
}

// ResolveIncident moves an incident to resolved.
func (s *AlertingService) ResolveIncident(ctx context.Context, orgID, id string) (models.AlertIncident, error) {
	if s.correlator == nil {
		return models.AlertIncident{}, utils.NewAppError("resolve_incident", "correlator not configured", nil)
	}
	return s.correlator.Resolve(ctx, orgID, id)
}

// MetricHotspots mines resolved incidents in the window for the metrics that
// trip alerts most often.
func (s *AlertingService) MetricHotspots(ctx context.Context, orgID string, start, end time.Time, limit int) ([]models.MetricHotspot, error) {
	if s.history == nil {
		return nil, utils.NewAppError("metric_hotspots", "incident history not configured", nil)
	}

	incidents, err := s.history.QueryResolvedIncidents(ctx, orgID, start, end)
	if err != nil {
		s.logger.Error("hotspot query failed", slog.String("org_id", orgID), slog.Any("error", err))
		return nil, utils.NewAppError("metric_hotspots", "failed to load resolved incidents", err)
	}
	return incident.MineHotspots(incidents, limit), nil
}

// Flush waits for background dispatch work to finish. Call before shutdown.
func (s *AlertingService) Flush() {
	if s.dispatcher != nil {
		s.dispatcher.Flush()
	}
}
