// Package web provides HTTP handlers and REST API endpoints for workflow and
// execution management.
package web

import (
	"time"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=1"`
	Description string         `json:"description"`
	Nodes       []*models.Node `json:"nodes"       validate:"required,min=1,dive,required"`
	Edges       []*models.Edge `json:"edges"       validate:"dive,required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Owner       string         `json:"owner"`
}

// UpdateWorkflowRequest represents the request body for updating a workflow.
// Nil fields are left unchanged.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string        `json:"description,omitempty"`
	Nodes       []*models.Node `json:"nodes,omitempty"       validate:"omitempty,min=1,dive,required"`
	Edges       []*models.Edge `json:"edges,omitempty"       validate:"omitempty,dive,required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecuteWorkflowRequest carries the initial variables for a new run.
type ExecuteWorkflowRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
}

// ContinueExecutionRequest carries the variables supplied when resuming a
// paused run.
type ContinueExecutionRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
}

// ExecutionResponse is the API view of an execution.
type ExecutionResponse struct {
	ID            string                 `json:"id"`
	WorkflowID    string                 `json:"workflow_id"`
	Status        models.ExecutionStatus `json:"status"`
	CurrentNodeID string                 `json:"current_node_id,omitempty"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
}

func toExecutionResponse(exec *models.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:            exec.ID,
		WorkflowID:    exec.WorkflowID,
		Status:        exec.Status,
		CurrentNodeID: exec.CurrentNodeID,
		StartedAt:     exec.StartedAt,
		CompletedAt:   exec.CompletedAt,
		ErrorMessage:  exec.ErrorMessage,
	}
}

// VariableResponse is the API view of one typed variable.
type VariableResponse struct {
	Name          string              `json:"name"`
	Value         any                 `json:"value"`
	Kind          models.VariableKind `json:"kind"`
	CreatedByNode string              `json:"created_by_node,omitempty"`
}

// FinalOutputResponse is the body of the final-output endpoint. HasOutput is
// false when the run completed without the end node materializing an output.
type FinalOutputResponse struct {
	ExecutionID string `json:"execution_id"`
	FinalOutput string `json:"final_output"`
	HasOutput   bool   `json:"has_output"`
}
