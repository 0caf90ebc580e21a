package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/config"
	"github.com/pulsewatch/pulse-alerting/internal/evaluator"
	"github.com/pulsewatch/pulse-alerting/internal/forecast"
	"github.com/pulsewatch/pulse-alerting/internal/models"
)

type serviceStub struct {
	forecastResult  models.ForecastResult
	forecastOpts    forecast.Options
	forecastErr     error
	dispatched      []models.AlertEvent
	dispatchSummary models.AlertDispatchSummary
	dispatchErr     error
	evaluateSummary *models.AlertDispatchSummary
	transitioned    []string
	transitionErr   error
	hotspots        []models.MetricHotspot
	packRules       map[string]evaluator.Rule
}

func (s *serviceStub) RuleByID(id string) (evaluator.Rule, bool) {
	rule, ok := s.packRules[id]
	return rule, ok
}

func (s *serviceStub) Forecast(_ []models.TimeSeriesPoint, opts forecast.Options) (models.ForecastResult, error) {
	s.forecastOpts = opts
	return s.forecastResult, s.forecastErr
}

func (s *serviceStub) DispatchAlert(_ context.Context, event models.AlertEvent) (models.AlertDispatchSummary, error) {
	s.dispatched = append(s.dispatched, event)
	return s.dispatchSummary, s.dispatchErr
}

func (s *serviceStub) EvaluateAndDispatch(_ context.Context, _ evaluator.Rule, _ []models.TimeSeriesPoint) (*models.AlertDispatchSummary, error) {
	return s.evaluateSummary, nil
}

func (s *serviceStub) ForecastAndDispatch(_ context.Context, _ evaluator.Rule, _ []models.TimeSeriesPoint, _ forecast.Options) (*models.AlertDispatchSummary, error) {
	return s.evaluateSummary, nil
}

func (s *serviceStub) AcknowledgeIncident(_ context.Context, orgID, id string) (models.AlertIncident, error) {
	s.transitioned = append(s.transitioned, orgID+"/"+id+"/ack")
	return models.AlertIncident{ID: id, OrgID: orgID, Status: models.IncidentAcknowledged}, s.transitionErr
}

func (s *serviceStub) ResolveIncident(_ context.Context, orgID, id string) (models.AlertIncident, error) {
	s.transitioned = append(s.transitioned, orgID+"/"+id+"/resolve")
	return models.AlertIncident{ID: id, OrgID: orgID, Status: models.IncidentResolved}, s.transitionErr
}

func (s *serviceStub) MetricHotspots(_ context.Context, _ string, _, _ time.Time, _ int) ([]models.MetricHotspot, error) {
	return s.hotspots, nil
}

func newTestServer(stub *serviceStub) *Server {
	forecasts := config.ForecastConfig{HorizonDays: 7, ConfidenceLevel: 0.95, Method: "ewma"}
	return NewServer(config.ServerConfig{Address: ":0"}, forecasts, nil, stub)
}

func TestHandleDispatchAlertSetsOrgFromPath(t *testing.T) {
	stub := &serviceStub{
		dispatchSummary: models.AlertDispatchSummary{ChannelsSelected: 1, ChannelsNotified: 1},
	}
	server := newTestServer(stub)

	body := `{"metricKey":"stripe:mrr","severity":"critical","title":"MRR drop"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/alerts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.dispatched) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(stub.dispatched))
	}
	if stub.dispatched[0].OrgID != "org-1" {
		t.Fatalf("org not taken from path: %q", stub.dispatched[0].OrgID)
	}
	if stub.dispatched[0].OccurredAt.IsZero() {
		t.Fatal("expected occurredAt to default to now")
	}

	var summary models.AlertDispatchSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.ChannelsNotified != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHandleDispatchAlertAssignsEventID(t *testing.T) {
	stub := &serviceStub{}
	server := newTestServer(stub)

	body := `{"metricKey":"stripe:mrr","severity":"critical","title":"MRR drop"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/alerts", strings.NewReader(body))
		rec := httptest.NewRecorder()
		server.Routes().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
		}
	}

	if len(stub.dispatched) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(stub.dispatched))
	}
	first, second := stub.dispatched[0].ID, stub.dispatched[1].ID
	if first == "" || second == "" {
		t.Fatalf("expected generated event ids, got %q and %q", first, second)
	}
	if first == second {
		t.Fatalf("expected distinct event ids, both were %q", first)
	}
}

func TestHandleDispatchAlertRejectsBadJSON(t *testing.T) {
	server := newTestServer(&serviceStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/alerts", strings.NewReader(`{"unknown":`))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleForecastInsufficientData(t *testing.T) {
	stub := &serviceStub{forecastErr: forecast.ErrInsufficientData}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/forecast", strings.NewReader(`{"points":[]}`))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestHandleForecastAppliesConfiguredDefaults(t *testing.T) {
	stub := &serviceStub{}
	server := newTestServer(stub)

	body := `{"points":[{"timestamp":"2026-03-01T00:00:00Z","value":900},{"timestamp":"2026-03-02T00:00:00Z","value":905}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/forecast", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	want := forecast.Options{HorizonDays: 7, ConfidenceLevel: 0.95, Method: forecast.MethodEWMA}
	if stub.forecastOpts != want {
		t.Fatalf("expected configured defaults %+v, got %+v", want, stub.forecastOpts)
	}
}

func TestHandleForecastRequestOverridesDefaults(t *testing.T) {
	stub := &serviceStub{}
	server := newTestServer(stub)

	body := `{"points":[{"timestamp":"2026-03-01T00:00:00Z","value":900}],"horizonDays":30,"confidenceLevel":0.8,"method":"linear"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/forecast", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	want := forecast.Options{HorizonDays: 30, ConfidenceLevel: 0.8, Method: forecast.MethodLinear}
	if stub.forecastOpts != want {
		t.Fatalf("expected request options %+v, got %+v", want, stub.forecastOpts)
	}
}

func TestHandleEvaluateNoFire(t *testing.T) {
	server := newTestServer(&serviceStub{evaluateSummary: nil})

	body := `{"rule":{"metricKey":"stripe:mrr","condition":{"operator":"lt","value":1000}},"points":[]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/rules/evaluate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestHandleEvaluateUnknownPackRule(t *testing.T) {
	server := newTestServer(&serviceStub{})

	body := `{"ruleId":"missing","points":[]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/rules/evaluate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleEvaluatePackRule(t *testing.T) {
	summary := &models.AlertDispatchSummary{ChannelsSelected: 1, ChannelsNotified: 1}
	stub := &serviceStub{
		evaluateSummary: summary,
		packRules: map[string]evaluator.Rule{
			"stripe-mrr-floor": {ID: "stripe-mrr-floor", MetricKey: "stripe:mrr"},
		},
	}
	server := newTestServer(stub)

	body := `{"ruleId":"stripe-mrr-floor","points":[{"timestamp":"2026-03-01T00:00:00Z","value":900}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/rules/evaluate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleIncidentTransitions(t *testing.T) {
	stub := &serviceStub{}
	server := newTestServer(stub)

	for _, action := range []string{"acknowledge", "resolve"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/incidents/inc-1/"+action, nil)
		rec := httptest.NewRecorder()
		server.Routes().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", action, rec.Code)
		}
	}
	if len(stub.transitioned) != 2 {
		t.Fatalf("expected 2 transitions, got %v", stub.transitioned)
	}
}

func TestHandleIncidentTransitionConflict(t *testing.T) {
	stub := &serviceStub{transitionErr: errors.New("invalid transition")}
	server := newTestServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/orgs/org-1/incidents/inc-1/acknowledge", nil)
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleHotspots(t *testing.T) {
	stub := &serviceStub{hotspots: []models.MetricHotspot{{MetricKey: "stripe:mrr", IncidentCount: 3}}}
	server := newTestServer(stub)

	url := "/v1/orgs/org-1/hotspots?start=2026-02-01T00:00:00Z&end=2026-03-01T00:00:00Z&limit=5"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Hotspots []models.MetricHotspot `json:"hotspots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Hotspots) != 1 || resp.Hotspots[0].MetricKey != "stripe:mrr" {
		t.Fatalf("unexpected hotspots: %+v", resp.Hotspots)
	}
}

func TestHandleHotspotsRejectsBadRange(t *testing.T) {
	server := newTestServer(&serviceStub{})

	req := httptest.NewRequest(http.MethodGet, "/v1/orgs/org-1/hotspots?start=yesterday", nil)
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
