package models

import "time"

// IncidentStatus enumerates the incident lifecycle states.
type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// CorrelationMetadata records the parameters used when grouping alerts.
type CorrelationMetadata struct {
	TimeWindowMinutes int `json:"timeWindowMinutes"`
}

// AlertIncident is a correlated group of alert events owned by the tenant's
// incident store. Status moves open -> acknowledged -> resolved (acknowledged
// is optional); a resolved incident is never re-opened.
type AlertIncident struct {
	ID                  string              `json:"id"`
	OrgID               string              `json:"orgId"`
	Title               string              `json:"title"`
	Summary             string              `json:"summary"`
	Status              IncidentStatus      `json:"status"`
	StartedAt           time.Time           `json:"startedAt"`
	ResolvedAt          *time.Time          `json:"resolvedAt,omitempty"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	AlertEventIDs       []string            `json:"alertEventIds"`
	RelatedMetrics      []string            `json:"relatedMetrics"`
	CorrelationMetadata CorrelationMetadata `json:"correlationMetadata"`
}

// AlertGroup is the output of offline batch correlation: a set of events
// whose trigger times fall inside one anchored time window.
type AlertGroup struct {
	Events     []AlertEvent `json:"events"`
	MetricKeys []string     `json:"metricKeys"`
	StartedAt  time.Time    `json:"startedAt"`
	EndedAt    time.Time    `json:"endedAt"`
}

// MetricHotspot aggregates how often a metric appears across incident history.
type MetricHotspot struct {
	MetricKey     string    `json:"metricKey"`
	IncidentCount int       `json:"incidentCount"`
	AlertCount    int       `json:"alertCount"`
	Prevalence    float64   `json:"prevalence"`
	LastSeen      time.Time `json:"lastSeen"`
}
