package api

import (
	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/stats"
)

// =============================================================================
// Request Types
// =============================================================================

// AddDeploymentRequest is the request body for registering a deployment.
type AddDeploymentRequest struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
	Start    bool   `json:"start,omitempty"`
}

// UpdateDeploymentRequest is the optional body of the update action.
type UpdateDeploymentRequest struct {
	Start   bool `json:"start,omitempty"`
	Restart bool `json:"restart,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for /ready.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// DeploymentListResponse wraps the deployment list.
type DeploymentListResponse struct {
	Deployments []domain.DeploymentView `json:"deployments"`
}

// AddDeploymentResponse is returned after a deployment was registered.
// StartError is set when the deployment was registered but did not start.
type AddDeploymentResponse struct {
	Deployment domain.Deployment `json:"deployment"`
	Started    bool              `json:"started"`
	StartError string            `json:"start_error,omitempty"`
}

// RemoveDeploymentResponse is returned after a deployment was unregistered.
type RemoveDeploymentResponse struct {
	Deployment domain.Deployment `json:"deployment"`
	Stopped    bool              `json:"stopped"`
}

// ActionResponse is returned by single deployment lifecycle actions.
type ActionResponse struct {
	Deployment string `json:"deployment"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome,omitempty"`
	Message    string `json:"message"`
}

// BulkItem is one deployment in a bulk action response.
type BulkItem struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BulkResponse is returned by start-all and stop-all.
type BulkResponse struct {
	Action  string     `json:"action"`
	Results []BulkItem `json:"results"`
	Failed  int        `json:"failed"`
}

// StatsResponse wraps the statistics list.
type StatsResponse struct {
	Statistics stats.Stats `json:"statistics"`
}

// HistoryResponse wraps history events.
type HistoryResponse struct {
	Events []domain.Event `json:"events"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
