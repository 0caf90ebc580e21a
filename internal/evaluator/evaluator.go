package evaluator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// Operator enumerates supported threshold comparisons.
type Operator string

const (
	OpGreaterThan     Operator = "gt"
	OpLessThan        Operator = "lt"
	OpGreaterOrEqual  Operator = "gte"
	OpLessThanOrEqual Operator = "lte"
)

// Condition compares an observed or forecast value against a threshold.
type Condition struct {
	Operator Operator `yaml:"operator" json:"operator"`
	Value    float64  `yaml:"value" json:"value"`
}

// Rule is a tenant-configured alert rule. Either Condition is set, or the
// legacy Direction/Threshold pair is; Condition wins when both are present.
type Rule struct {
	ID        string          `yaml:"id" json:"id"`
	OrgID     string          `yaml:"orgId" json:"orgId"`
	MetricKey string          `yaml:"metricKey" json:"metricKey"`
	Name      string          `yaml:"name" json:"name"`
	Condition *Condition      `yaml:"condition,omitempty" json:"condition,omitempty"`
	Direction string          `yaml:"direction,omitempty" json:"direction,omitempty"`
	Threshold float64         `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Severity  models.Severity `yaml:"severity,omitempty" json:"severity,omitempty"`

	// SeverityThreshold applies to anomaly-type rules without an explicit
	// severity: scores at or above it map to critical, the rest to warning.
	SeverityThreshold float64 `yaml:"severityThreshold,omitempty" json:"severityThreshold,omitempty"`
}

// Evaluator is a pure predicate plus event constructor; it holds no state.
type Evaluator struct{}

// NewEvaluator constructs an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateValue checks the rule against the latest observed value and
// returns an alert event when the condition holds.
func (e *Evaluator) EvaluateValue(rule Rule, value float64, observedAt time.Time) (models.AlertEvent, bool) {
	if !e.holds(rule, value) {
		return models.AlertEvent{}, false
	}
	trigger := ThresholdTrigger{
		Operator:      rule.operator(),
		Threshold:     rule.threshold(),
		ObservedValue: value,
	}
	return e.buildEvent(rule, trigger, value, observedAt), true
}

// EvaluateForecast checks the rule against a single forecast point.
func (e *Evaluator) EvaluateForecast(rule Rule, point models.ForecastPoint) (models.AlertEvent, bool) {
	if !e.holds(rule, point.PredictedValue) {
		return models.AlertEvent{}, false
	}
	trigger := ForecastTrigger{
		Operator:        rule.operator(),
		Threshold:       rule.threshold(),
		PredictedValue:  point.PredictedValue,
		PredictedFor:    point.Timestamp,
		ConfidenceLevel: point.ConfidenceLevel,
	}
	return e.buildEvent(rule, trigger, point.PredictedValue, time.Now().UTC()), true
}

// EvaluateAnomaly raises an event for an anomaly score, deriving severity
// from the rule's severity threshold when no explicit severity is set.
func (e *Evaluator) EvaluateAnomaly(rule Rule, score, value float64, observedAt time.Time) (models.AlertEvent, bool) {
	threshold := rule.SeverityThreshold
	if threshold <= 0 {
		threshold = 3
	}
	if score < threshold {
		return models.AlertEvent{}, false
	}

	severity := rule.Severity
	if severity == "" {
		severity = models.SeverityWarning
		if score >= 2*threshold {
			severity = models.SeverityCritical
		}
	}
	withSeverity := rule
	withSeverity.Severity = severity

	trigger := AnomalyTrigger{Score: score, ScoreThreshold: threshold, ObservedValue: value}
	return e.buildEvent(withSeverity, trigger, value, observedAt), true
}

func (e *Evaluator) holds(rule Rule, value float64) bool {
	switch rule.operator() {
	case OpGreaterThan:
		return value > rule.threshold()
	case OpLessThan:
		return value < rule.threshold()
	case OpGreaterOrEqual:
		return value >= rule.threshold()
	case OpLessThanOrEqual:
		return value <= rule.threshold()
	}
	return false
}

func (e *Evaluator) buildEvent(rule Rule, trigger TriggerDetails, value float64, at time.Time) models.AlertEvent {
	severity := rule.Severity
	if severity == "" {
		severity = models.SeverityWarning
	}
	title := rule.Name
	if title == "" {
		title = fmt.Sprintf("%s %s %.2f", rule.MetricKey, rule.operator(), rule.threshold())
	}
	return models.AlertEvent{
		ID:         uuid.NewString(),
		OrgID:      rule.OrgID,
		MetricKey:  rule.MetricKey,
		Severity:   severity,
		Title:      title,
		Message:    describeTrigger(trigger, rule.MetricKey, value),
		Context:    triggerContext(trigger),
		OccurredAt: at,
	}
}

// operator resolves the effective comparison, mapping the legacy
// direction field ("above"/"below") onto the gt/lt operators.
func (r Rule) operator() Operator {
	if r.Condition != nil {
		return r.Condition.Operator
	}
	if r.Direction == "below" {
		return OpLessThan
	}
	return OpGreaterThan
}

func (r Rule) threshold() float64 {
	if r.Condition != nil {
		return r.Condition.Value
	}
	return r.Threshold
}
