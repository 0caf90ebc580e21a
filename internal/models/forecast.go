package models

import "time"

// TimeSeriesPoint is a single observed metric sample. The forecast engine
// permits duplicate timestamps; deduplication is the caller's concern.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ForecastPoint is one predicted future sample with its confidence interval.
type ForecastPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	PredictedValue  float64   `json:"predictedValue"`
	ConfidenceLower float64   `json:"confidenceLower"`
	ConfidenceUpper float64   `json:"confidenceUpper"`
	ConfidenceLevel float64   `json:"confidenceLevel"`
}

// ModelInfo describes the fitted model for explainability.
type ModelInfo struct {
	Name       string             `json:"name"`
	Version    string             `json:"version"`
	Parameters map[string]float64 `json:"parameters"`
}

// ForecastMetrics carries bookkeeping about a forecast run.
type ForecastMetrics struct {
	InputPoints  int   `json:"inputPoints"`
	OutputPoints int   `json:"outputPoints"`
	DurationMs   int64 `json:"durationMs"`
}

// ForecastResult is the full output of a forecast run. Predictions always
// has exactly the requested horizon length.
type ForecastResult struct {
	Predictions []ForecastPoint `json:"predictions"`
	ModelInfo   ModelInfo       `json:"modelInfo"`
	Metrics     ForecastMetrics `json:"metrics"`
}
