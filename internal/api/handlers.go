package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulse-alerting/internal/evaluator"
	"github.com/pulsewatch/pulse-alerting/internal/forecast"
	"github.com/pulsewatch/pulse-alerting/internal/models"
)

const maxBodyBytes = 1 << 20

type forecastRequest struct {
	Points          []models.TimeSeriesPoint `json:"points"`
	HorizonDays     int                      `json:"horizonDays"`
	ConfidenceLevel float64                  `json:"confidenceLevel"`
	Method          string                   `json:"method"`
}

type evaluateRequest struct {
	RuleID          string                   `json:"ruleId"`
	Rule            evaluator.Rule           `json:"rule"`
	Points          []models.TimeSeriesPoint `json:"points"`
	Forecast        bool                     `json:"forecast"`
	HorizonDays     int                      `json:"horizonDays"`
	ConfidenceLevel float64                  `json:"confidenceLevel"`
	Method          string                   `json:"method"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.service.Forecast(req.Points, s.forecastOptions(req.HorizonDays, req.ConfidenceLevel, req.Method))
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// forecastOptions fills request fields the caller omitted from the
// configured forecast defaults.
func (s *Server) forecastOptions(horizonDays int, confidenceLevel float64, method string) forecast.Options {
	if horizonDays <= 0 {
		horizonDays = s.forecasts.HorizonDays
	}
	if confidenceLevel <= 0 {
		confidenceLevel = s.forecasts.ConfidenceLevel
	}
	if method == "" {
		method = s.forecasts.Method
	}
	return forecast.Options{
		HorizonDays:     horizonDays,
		ConfidenceLevel: confidenceLevel,
		Method:          forecast.Method(method),
	}
}

func (s *Server) handleDispatchAlert(w http.ResponseWriter, r *http.Request) {
	var event models.AlertEvent
	if !s.decode(w, r, &event) {
		return
	}
	event.OrgID = r.PathValue("org")
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	summary, err := s.service.DispatchAlert(r.Context(), event)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.RuleID != "" {
		rule, ok := s.service.RuleByID(req.RuleID)
		if !ok {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("rule %q not in the configured pack", req.RuleID))
			return
		}
		req.Rule = rule
	}
	req.Rule.OrgID = r.PathValue("org")

	var (
		summary *models.AlertDispatchSummary
		err     error
	)
	if req.Forecast {
		summary, err = s.service.ForecastAndDispatch(r.Context(), req.Rule, req.Points, s.forecastOptions(req.HorizonDays, req.ConfidenceLevel, req.Method))
	} else {
		summary, err = s.service.EvaluateAndDispatch(r.Context(), req.Rule, req.Points)
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.service.AcknowledgeIncident)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.service.ResolveIncident)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	incident, err := fn(r.Context(), r.PathValue("org"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, incident)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, err := time.Parse(time.RFC3339, query.Get("start"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start: %w", err))
		return
	}
	end, err := time.Parse(time.RFC3339, query.Get("end"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
		return
	}
	limit := 10
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}

	hotspots, err := s.service.MetricHotspots(r.Context(), r.PathValue("org"), start, end, limit)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"hotspots": hotspots})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
