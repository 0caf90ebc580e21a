package evaluator

import (
	"fmt"
	"strconv"
	"time"
)

// TriggerDetails is a closed sum over the ways a rule can fire. Each variant
// carries its own payload; consumers switch on the concrete type.
type TriggerDetails interface {
	isTrigger()
}

// ThresholdTrigger fires when an observed value crosses the rule threshold.
type ThresholdTrigger struct {
	Operator      Operator
	Threshold     float64
	ObservedValue float64
}

// ForecastTrigger fires when a predicted value crosses the rule threshold.
type ForecastTrigger struct {
	Operator        Operator
	Threshold       float64
	PredictedValue  float64
	PredictedFor    time.Time
	ConfidenceLevel float64
}

// AnomalyTrigger fires when an anomaly score exceeds the rule's score threshold.
type AnomalyTrigger struct {
	Score          float64
	ScoreThreshold float64
	ObservedValue  float64
}

func (ThresholdTrigger) isTrigger() {}
func (ForecastTrigger) isTrigger()  {}
func (AnomalyTrigger) isTrigger()   {}

func describeTrigger(trigger TriggerDetails, metricKey string, value float64) string {
	switch t := trigger.(type) {
	case ThresholdTrigger:
		return fmt.Sprintf("%s is %.2f (%s %.2f)", metricKey, t.ObservedValue, operatorText(t.Operator), t.Threshold)
	case ForecastTrigger:
		return fmt.Sprintf("%s is forecast to reach %.2f by %s (%s %.2f)",
			metricKey, t.PredictedValue, t.PredictedFor.Format("2006-01-02"), operatorText(t.Operator), t.Threshold)
	case AnomalyTrigger:
		return fmt.Sprintf("%s anomaly score %.2f exceeds %.2f (value %.2f)", metricKey, t.Score, t.ScoreThreshold, t.ObservedValue)
	}
	return fmt.Sprintf("%s triggered at %.2f", metricKey, value)
}

func triggerContext(trigger TriggerDetails) map[string]string {
	switch t := trigger.(type) {
	case ThresholdTrigger:
		return map[string]string{
			"triggerType": "threshold",
			"operator":    string(t.Operator),
			"threshold":   formatFloat(t.Threshold),
			"observed":    formatFloat(t.ObservedValue),
		}
	case ForecastTrigger:
		return map[string]string{
			"triggerType":  "forecast",
			"operator":     string(t.Operator),
			"threshold":    formatFloat(t.Threshold),
			"predicted":    formatFloat(t.PredictedValue),
			"predictedFor": t.PredictedFor.Format(time.RFC3339),
		}
	case AnomalyTrigger:
		return map[string]string{
			"triggerType":    "anomaly",
			"score":          formatFloat(t.Score),
			"scoreThreshold": formatFloat(t.ScoreThreshold),
			"observed":       formatFloat(t.ObservedValue),
		}
	}
	return nil
}

func operatorText(op Operator) string {
	switch op {
	case OpGreaterThan:
		return "above"
	case OpLessThan:
		return "below"
	case OpGreaterOrEqual:
		return "at or above"
	case OpLessThanOrEqual:
		return "at or below"
	}
	return string(op)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
