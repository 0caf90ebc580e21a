package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/config"
	"github.com/pulsewatch/pulse-alerting/internal/evaluator"
	"github.com/pulsewatch/pulse-alerting/internal/forecast"
	"github.com/pulsewatch/pulse-alerting/internal/models"
)

type transitionFunc func(ctx context.Context, orgID, id string) (models.AlertIncident, error)

// AlertingService is the orchestration surface the HTTP layer exposes.
type AlertingService interface {
	Forecast(points []models.TimeSeriesPoint, opts forecast.Options) (models.ForecastResult, error)
	DispatchAlert(ctx context.Context, event models.AlertEvent) (models.AlertDispatchSummary, error)
	EvaluateAndDispatch(ctx context.Context, rule evaluator.Rule, points []models.TimeSeriesPoint) (*models.AlertDispatchSummary, error)
	ForecastAndDispatch(ctx context.Context, rule evaluator.Rule, points []models.TimeSeriesPoint, opts forecast.Options) (*models.AlertDispatchSummary, error)
	AcknowledgeIncident(ctx context.Context, orgID, id string) (models.AlertIncident, error)
	ResolveIncident(ctx context.Context, orgID, id string) (models.AlertIncident, error)
	MetricHotspots(ctx context.Context, orgID string, start, end time.Time, limit int) ([]models.MetricHotspot, error)
	RuleByID(id string) (evaluator.Rule, bool)
}

// Server wraps the HTTP server and its lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	forecasts  config.ForecastConfig
	logger     *slog.Logger
	service    AlertingService
	httpServer *http.Server
}

// NewServer constructs an HTTP server bound to the configured address.
// Forecast settings fill in request fields the caller leaves unset.
func NewServer(cfg config.ServerConfig, forecasts config.ForecastConfig, logger *slog.Logger, service AlertingService) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, forecasts: forecasts, logger: logger, service: service}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Routes builds the request mux. Exposed so tests can drive handlers
// without a listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orgs/{org}/forecast", s.handleForecast)
	mux.HandleFunc("POST /v1/orgs/{org}/alerts", s.handleDispatchAlert)
	mux.HandleFunc("POST /v1/orgs/{org}/rules/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/orgs/{org}/incidents/{id}/acknowledge", s.handleAcknowledge)
	mux.HandleFunc("POST /v1/orgs/{org}/incidents/{id}/resolve", s.handleResolve)
	mux.HandleFunc("GET /v1/orgs/{org}/hotspots", s.handleHotspots)
	return mux
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
