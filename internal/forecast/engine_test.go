package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

func dailySeries(start time.Time, values ...float64) []models.TimeSeriesPoint {
	points := make([]models.TimeSeriesPoint, 0, len(values))
	for i, v := range values {
		points = append(points, models.TimeSeriesPoint{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Value:     v,
		})
	}
	return points
}

func TestForecastInsufficientData(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Forecast([]models.TimeSeriesPoint{{Timestamp: time.Now(), Value: 1}}, Options{HorizonDays: 7})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}

	_, err = engine.Forecast(nil, Options{HorizonDays: 7})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for empty input, got %v", err)
	}
}

func TestForecastHorizonLength(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := dailySeries(start, 100, 110, 105, 120, 115, 130)

	for _, method := range []Method{MethodSMA, MethodEWMA, MethodLinear} {
		for _, horizon := range []int{1, 7, 30} {
			result, err := engine.Forecast(points, Options{HorizonDays: horizon, Method: method})
			if err != nil {
				t.Fatalf("%s horizon=%d: unexpected error: %v", method, horizon, err)
			}
			if len(result.Predictions) != horizon {
				t.Fatalf("%s: expected %d predictions, got %d", method, horizon, len(result.Predictions))
			}
			if result.Metrics.OutputPoints != horizon {
				t.Fatalf("%s: expected OutputPoints %d, got %d", method, horizon, result.Metrics.OutputPoints)
			}
			if result.Metrics.InputPoints != len(points) {
				t.Fatalf("%s: expected InputPoints %d, got %d", method, len(points), result.Metrics.InputPoints)
			}
		}
	}
}

func TestForecastConfidenceBoundsContainPrediction(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := dailySeries(start, 50, 55, 47, 60, 52, 58, 49, 63)

	for _, method := range []Method{MethodSMA, MethodEWMA, MethodLinear} {
		result, err := engine.Forecast(points, Options{HorizonDays: 10, Method: method})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		for i, p := range result.Predictions {
			if p.ConfidenceLower > p.PredictedValue || p.PredictedValue > p.ConfidenceUpper {
				t.Fatalf("%s step %d: bounds [%f, %f] do not contain prediction %f",
					method, i+1, p.ConfidenceLower, p.ConfidenceUpper, p.PredictedValue)
			}
			if p.ConfidenceLevel != 0.95 {
				t.Fatalf("%s step %d: expected default confidence level 0.95, got %f", method, i+1, p.ConfidenceLevel)
			}
		}
	}
}

func TestForecastMarginWidensWithHorizon(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := dailySeries(start, 10, 14, 9, 15, 11, 16, 12, 17)

	for _, method := range []Method{MethodSMA, MethodEWMA, MethodLinear} {
		result, err := engine.Forecast(points, Options{HorizonDays: 12, Method: method})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		prev := -1.0
		for i, p := range result.Predictions {
			margin := p.ConfidenceUpper - p.PredictedValue
			if margin < prev {
				t.Fatalf("%s step %d: margin %f narrower than previous %f", method, i+1, margin, prev)
			}
			prev = margin
		}
	}
}

func TestForecastSMAFlatShortSeries(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := dailySeries(start, 100, 110, 105)

	result, err := engine.Forecast(points, Options{HorizonDays: 7, Method: MethodSMA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Predictions) != 7 {
		t.Fatalf("expected 7 predictions, got %d", len(result.Predictions))
	}

	// With 3 points the window is min(1, 10) = 1, so every prediction is
	// the most recent value and the margins still widen.
	for i, p := range result.Predictions {
		if p.PredictedValue != 105 {
			t.Fatalf("step %d: expected flat prediction 105, got %f", i+1, p.PredictedValue)
		}
		if p.ConfidenceUpper-p.ConfidenceLower <= 0 {
			t.Fatalf("step %d: expected non-zero margin", i+1)
		}
	}
	if got := result.ModelInfo.Parameters["window"]; got != 1 {
		t.Fatalf("expected window 1, got %f", got)
	}
}

func TestForecastSortsUnorderedInput(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ordered := dailySeries(start, 10, 20, 30, 40)
	shuffled := []models.TimeSeriesPoint{ordered[2], ordered[0], ordered[3], ordered[1]}

	want, err := engine.Forecast(ordered, Options{HorizonDays: 3, Method: MethodLinear})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := engine.Forecast(shuffled, Options{HorizonDays: 3, Method: MethodLinear})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range want.Predictions {
		if math.Abs(want.Predictions[i].PredictedValue-got.Predictions[i].PredictedValue) > 1e-9 {
			t.Fatalf("step %d: order-sensitive prediction %f vs %f", i+1, want.Predictions[i].PredictedValue, got.Predictions[i].PredictedValue)
		}
	}
}

func TestForecastLinearRecoversTrend(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := dailySeries(start, 10, 20, 30, 40, 50)

	result, err := engine.Forecast(points, Options{HorizonDays: 2, Method: MethodLinear})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slope := result.ModelInfo.Parameters["slope"]; math.Abs(slope-10) > 1e-9 {
		t.Fatalf("expected slope 10, got %f", slope)
	}
	if r2 := result.ModelInfo.Parameters["rSquared"]; math.Abs(r2-1) > 1e-9 {
		t.Fatalf("expected rSquared 1, got %f", r2)
	}
	if next := result.Predictions[0].PredictedValue; math.Abs(next-60) > 1e-9 {
		t.Fatalf("expected next prediction 60, got %f", next)
	}
}

func TestForecastProjectsDetectedCadence(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []models.TimeSeriesPoint{
		{Timestamp: start, Value: 1},
		{Timestamp: start.Add(time.Hour), Value: 2},
		{Timestamp: start.Add(2 * time.Hour), Value: 3},
		{Timestamp: start.Add(3 * time.Hour), Value: 4},
	}

	result, err := engine.Forecast(points, Options{HorizonDays: 2, Method: MethodEWMA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := result.Predictions[0].Timestamp
	if want := start.Add(4 * time.Hour); !first.Equal(want) {
		t.Fatalf("expected first prediction at %v, got %v", want, first)
	}
}

func TestForecastDuplicateTimestampsDefaultCadence(t *testing.T) {
	engine := NewEngine()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []models.TimeSeriesPoint{
		{Timestamp: at, Value: 5},
		{Timestamp: at, Value: 7},
	}

	result, err := engine.Forecast(points, Options{HorizonDays: 1, Method: MethodSMA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := at.Add(24 * time.Hour); !result.Predictions[0].Timestamp.Equal(want) {
		t.Fatalf("expected default daily cadence, got %v", result.Predictions[0].Timestamp)
	}
}

func TestForecastUnknownMethodRejected(t *testing.T) {
	engine := NewEngine()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := engine.Forecast(dailySeries(start, 1, 2, 3), Options{HorizonDays: 1, Method: Method("arima")})
	if err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestForecastZScoreLookup(t *testing.T) {
	cases := []struct {
		level float64
		want  float64
	}{
		{0.80, 1.282},
		{0.85, 1.440},
		{0.90, 1.645},
		{0.95, 1.960},
		{0.99, 2.576},
		{0.123, 1.960},
	}
	for _, tc := range cases {
		if got := zScore(tc.level); got != tc.want {
			t.Fatalf("zScore(%f): expected %f, got %f", tc.level, tc.want, got)
		}
	}
}
