package rest

import (
	"testops/testplan-engine/internal/lifecycle"
	"testops/testplan-engine/internal/metrics"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CreatePlanRequest represents a test plan creation request. The template is
// the YAML (or JSON) template document; properties override template property
// defaults for this instance.
type CreatePlanRequest struct {
	Template   string         `json:"template"`
	ID         string         `json:"id,omitempty"`
	SystemID   string         `json:"systemId,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// PlanResponse represents the current state of a test plan instance.
type PlanResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	SystemID    string             `json:"systemId,omitempty"`
	Phase       lifecycle.Phase    `json:"phase"`
	Transitions []string           `json:"transitions,omitempty"`
	History     []lifecycle.Record `json:"history,omitempty"`
}

// PlanListResponse represents a list of test plan instances.
type PlanListResponse struct {
	Plans []PlanResponse `json:"plans"`
	Total int            `json:"total"`
}

// TransitionResponse represents the outcome of a fired transition.
type TransitionResponse struct {
	ID     string           `json:"id"`
	Record lifecycle.Record `json:"record"`
}

// MetricsResponse represents dispatch latency metrics by series.
type MetricsResponse struct {
	Series map[string]metrics.Snapshot `json:"series"`
}
