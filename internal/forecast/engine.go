package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// Method selects the forecasting estimator.
type Method string

const (
	MethodSMA    Method = "sma"
	MethodEWMA   Method = "ewma"
	MethodLinear Method = "linear"
)

// ErrInsufficientData signals that fewer than two input points were supplied.
var ErrInsufficientData = errors.New("forecast: at least 2 data points required")

const (
	modelVersion = "1.2.0"

	// Floor applied to fitted standard deviations so degenerate inputs
	// (single-sample windows, perfectly collinear points) still produce
	// widening intervals instead of collapsing to zero-width.
	sigmaFloor = 0.01

	defaultConfidenceLevel = 0.95
	maxWindow              = 10
	ewmaStepWidening       = 0.1
)

// Options controls a single forecast run.
type Options struct {
	HorizonDays     int
	ConfidenceLevel float64
	Method          Method
}

// Engine turns a historical value sequence into future point predictions
// with confidence bounds. It is pure and stateless; construct once at
// service start and share freely.
type Engine struct{}

// NewEngine constructs a forecast engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Forecast predicts HorizonDays future points from the supplied history.
// Points are stable-sorted by timestamp; caller order is not assumed.
func (e *Engine) Forecast(points []models.TimeSeriesPoint, opts Options) (models.ForecastResult, error) {
	start := time.Now()

	if len(points) < 2 {
		return models.ForecastResult{}, fmt.Errorf("%w: got %d", ErrInsufficientData, len(points))
	}
	if opts.HorizonDays <= 0 {
		return models.ForecastResult{}, fmt.Errorf("forecast: horizon must be positive, got %d", opts.HorizonDays)
	}
	if opts.ConfidenceLevel == 0 {
		opts.ConfidenceLevel = defaultConfidenceLevel
	}
	if opts.Method == "" {
		opts.Method = MethodEWMA
	}

	sorted := append([]models.TimeSeriesPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	interval := detectInterval(sorted)
	z := zScore(opts.ConfidenceLevel)

	var (
		predictions []models.ForecastPoint
		info        models.ModelInfo
		err         error
	)
	switch opts.Method {
	case MethodSMA:
		predictions, info = forecastSMA(sorted, opts, interval, z)
	case MethodEWMA:
		predictions, info = forecastEWMA(sorted, opts, interval, z)
	case MethodLinear:
		predictions, info = forecastLinear(sorted, opts, interval, z)
	default:
		err = fmt.Errorf("forecast: unknown method %q", opts.Method)
	}
	if err != nil {
		return models.ForecastResult{}, err
	}

	return models.ForecastResult{
		Predictions: predictions,
		ModelInfo:   info,
		Metrics: models.ForecastMetrics{
			InputPoints:  len(sorted),
			OutputPoints: len(predictions),
			DurationMs:   time.Since(start).Milliseconds(),
		},
	}, nil
}

// detectInterval estimates the observation cadence as the median of the
// first min(9, n-1) consecutive positive deltas. Non-positive deltas
// (duplicate or out-of-order timestamps) are discarded; with no positive
// delta at all the cadence defaults to one day.
func detectInterval(points []models.TimeSeriesPoint) time.Duration {
	limit := len(points) - 1
	if limit > 9 {
		limit = 9
	}

	deltas := make([]time.Duration, 0, limit)
	for i := 0; i < limit; i++ {
		d := points[i+1].Timestamp.Sub(points[i].Timestamp)
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 24 * time.Hour
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	mid := len(deltas) / 2
	if len(deltas)%2 == 0 {
		return (deltas[mid-1] + deltas[mid]) / 2
	}
	return deltas[mid]
}

func forecastSMA(points []models.TimeSeriesPoint, opts Options, interval time.Duration, z float64) ([]models.ForecastPoint, models.ModelInfo) {
	n := len(points)
	window := n / 2
	if window > maxWindow {
		window = maxWindow
	}
	if window < 1 {
		window = 1
	}

	recent := points[n-window:]
	mean := 0.0
	for _, p := range recent {
		mean += p.Value
	}
	mean /= float64(window)

	variance := 0.0
	for _, p := range recent {
		variance += (p.Value - mean) * (p.Value - mean)
	}
	variance /= float64(window)
	sigma := math.Sqrt(variance)
	if sigma < sigmaFloor {
		sigma = sigmaFloor
	}

	last := points[n-1].Timestamp
	predictions := make([]models.ForecastPoint, 0, opts.HorizonDays)
	for step := 1; step <= opts.HorizonDays; step++ {
		margin := z * sigma * math.Sqrt(1+float64(step)/float64(window))
		predictions = append(predictions, models.ForecastPoint{
			Timestamp:       last.Add(time.Duration(step) * interval),
			PredictedValue:  mean,
			ConfidenceLower: mean - margin,
			ConfidenceUpper: mean + margin,
			ConfidenceLevel: opts.ConfidenceLevel,
		})
	}

	return predictions, models.ModelInfo{
		Name:    string(MethodSMA),
		Version: modelVersion,
		Parameters: map[string]float64{
			"window": float64(window),
			"mean":   mean,
			"stddev": sigma,
		},
	}
}

func forecastEWMA(points []models.TimeSeriesPoint, opts Options, interval time.Duration, z float64) ([]models.ForecastPoint, models.ModelInfo) {
	n := len(points)
	span := n
	if span > maxWindow {
		span = maxWindow
	}
	alpha := 2.0 / float64(span+1)

	smoothed := points[0].Value
	for i := 1; i < n; i++ {
		smoothed = alpha*points[i].Value + (1-alpha)*smoothed
	}

	// Weighted variance around the smoothed level, most recent samples
	// carrying the most weight.
	weightSum := 0.0
	variance := 0.0
	for i, p := range points {
		w := math.Pow(1-alpha, float64(n-1-i))
		variance += w * (p.Value - smoothed) * (p.Value - smoothed)
		weightSum += w
	}
	if weightSum > 0 {
		variance /= weightSum
	}
	sigma := math.Sqrt(variance)
	if sigma < sigmaFloor {
		sigma = sigmaFloor
	}

	back := 5
	if back > n-1 {
		back = n - 1
	}
	trend := 0.0
	if back > 0 {
		trend = (points[n-1].Value - points[n-1-back].Value) / float64(back)
	}

	last := points[n-1].Timestamp
	predictions := make([]models.ForecastPoint, 0, opts.HorizonDays)
	for step := 1; step <= opts.HorizonDays; step++ {
		predicted := smoothed + trend*float64(step)
		margin := z * sigma * math.Sqrt(1+float64(step)*ewmaStepWidening)
		predictions = append(predictions, models.ForecastPoint{
			Timestamp:       last.Add(time.Duration(step) * interval),
			PredictedValue:  predicted,
			ConfidenceLower: predicted - margin,
			ConfidenceUpper: predicted + margin,
			ConfidenceLevel: opts.ConfidenceLevel,
		})
	}

	return predictions, models.ModelInfo{
		Name:    string(MethodEWMA),
		Version: modelVersion,
		Parameters: map[string]float64{
			"alpha":  alpha,
			"level":  smoothed,
			"trend":  trend,
			"stddev": sigma,
		},
	}
}

func forecastLinear(points []models.TimeSeriesPoint, opts Options, interval time.Duration, z float64) ([]models.ForecastPoint, models.ModelInfo) {
	n := len(points)
	fn := float64(n)

	sumX, sumY := 0.0, 0.0
	for i, p := range points {
		sumX += float64(i)
		sumY += p.Value
	}
	meanX := sumX / fn
	meanY := sumY / fn

	sxx, sxy, syy := 0.0, 0.0, 0.0
	for i, p := range points {
		dx := float64(i) - meanX
		dy := p.Value - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	slope := 0.0
	if sxx > 0 {
		slope = sxy / sxx
	}
	intercept := meanY - slope*meanX

	sse := 0.0
	for i, p := range points {
		fitted := intercept + slope*float64(i)
		sse += (p.Value - fitted) * (p.Value - fitted)
	}
	stderr := sigmaFloor
	if n > 2 {
		stderr = math.Sqrt(sse / float64(n-2))
		if stderr < sigmaFloor {
			stderr = sigmaFloor
		}
	}

	rSquared := 1.0
	if syy > 0 {
		rSquared = 1 - sse/syy
	}

	last := points[n-1].Timestamp
	predictions := make([]models.ForecastPoint, 0, opts.HorizonDays)
	for step := 1; step <= opts.HorizonDays; step++ {
		x := float64(n - 1 + step)
		predicted := intercept + slope*x

		widen := 1 + 1/fn
		if sxx > 0 {
			widen += (x - meanX) * (x - meanX) / sxx
		}
		margin := z * stderr * math.Sqrt(widen)

		predictions = append(predictions, models.ForecastPoint{
			Timestamp:       last.Add(time.Duration(step) * interval),
			PredictedValue:  predicted,
			ConfidenceLower: predicted - margin,
			ConfidenceUpper: predicted + margin,
			ConfidenceLevel: opts.ConfidenceLevel,
		})
	}

	return predictions, models.ModelInfo{
		Name:    string(MethodLinear),
		Version: modelVersion,
		Parameters: map[string]float64{
			"slope":     slope,
			"intercept": intercept,
			"stderr":    stderr,
			"rSquared":  rSquared,
		},
	}
}

// zScore maps common confidence levels to their two-sided normal quantile.
// Unrecognised levels fall back to the 0.95 score. This lookup is an
// intentional approximation; the engine does not compute inverse normals.
func zScore(level float64) float64 {
	switch level {
	case 0.80:
		return 1.282
	case 0.85:
		return 1.440
	case 0.90:
		return 1.645
	case 0.95:
		return 1.960
	case 0.99:
		return 2.576
	}
	return 1.960
}
