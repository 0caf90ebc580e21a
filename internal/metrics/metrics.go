package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
)

var (
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_alerting",
			Name:      "dispatches_total",
			Help:      "Total number of alert dispatches handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	dispatchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulse_alerting",
			Name:      "dispatch_seconds",
			Help:      "Alert dispatch latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
	)

	channelSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_alerting",
			Name:      "channel_sends_total",
			Help:      "Per-channel delivery attempts, partitioned by channel type and outcome.",
		},
		[]string{"channel_type", "outcome"},
	)

	forecastDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pulse_alerting",
			Name:      "forecast_seconds",
			Help:      "Forecast computation latency in seconds, partitioned by method.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method"},
	)
)

// Register attaches pulse-alerting collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		dispatchesTotal,
		dispatchDurationSeconds,
		channelSendsTotal,
		forecastDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDispatch records a dispatch duration and outcome label.
func ObserveDispatch(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	dispatchesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	dispatchDurationSeconds.Observe(duration.Seconds())
}

// ObserveChannelSend records one per-channel delivery attempt.
func ObserveChannelSend(channelType, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	channelSendsTotal.WithLabelValues(channelType, label).Inc()
}

// ObserveForecast records a forecast run duration for the given method.
func ObserveForecast(method string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	forecastDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}
