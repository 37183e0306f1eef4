// Package web provides HTTP request and response types for the pipeline API.
package web

import "github.com/kyletaylored/datadog-data-jobs/pkg/models"

// CreatePipelineRequest represents the request body for creating a new
// pipeline run.
type CreatePipelineRequest struct {
	Name        string `json:"name"                  validate:"required,min=3"`
	Description string `json:"description,omitempty"`
}

// StatusUpdateRequest represents one status report posted by an
// out-of-process stage host. StageName scopes the update to a stage row;
// without it the update applies to the run itself.
type StatusUpdateRequest struct {
	PipelineID       int64  `json:"pipeline_id"                 validate:"required,gt=0"`
	StageName        string `json:"stage_name,omitempty"`
	Status           string `json:"status,omitempty"            validate:"omitempty,oneof=pending running completed failed"`
	ErrorMessage     string `json:"error_message,omitempty"`
	RecordsProcessed *int   `json:"records_processed,omitempty"`
}

// TriggerResponse acknowledges an accepted trigger request.
type TriggerResponse struct {
	PipelineID  int64  `json:"pipeline_id"`
	RecordCount int    `json:"record_count"`
	Status      string `json:"status"`
}

// PipelineStatusResponse bundles a run and its stage rows for the dashboard
// poll.
type PipelineStatusResponse struct {
	Pipeline *models.Pipeline        `json:"pipeline"`
	Stages   []*models.PipelineStage `json:"stages"`
}
