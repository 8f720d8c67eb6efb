// Package persistence provides the data storage abstraction for workflows,
// executions, variables and history records.
package persistence

import (
	"context"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
)

// Persistence aggregates the repositories backing one storage engine.
// The engine drives every step-loop iteration through these repositories:
// an execution id is only ever owned by one in-flight loop, so repositories
// need transactional consistency but no cross-row locking.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	VariableRepository() VariableRepository
	HistoryRepository() HistoryRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow graph definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores execution run records. Save upserts by id.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	List(ctx context.Context, limit, offset int) ([]*models.Execution, error)
	Delete(ctx context.Context, id string) error
}

// VariableRepository stores the typed variable environment of executions.
// Upsert replaces value, kind and origin in place for an existing name.
type VariableRepository interface {
	Upsert(ctx context.Context, variable *models.Variable) error
	GetByName(ctx context.Context, executionID, name string) (*models.Variable, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.Variable, error)
}

// HistoryRepository stores the per-node audit trail. Append creates the
// record; Update finalizes it. ListByExecution returns records ordered by
// start time.
type HistoryRepository interface {
	Append(ctx context.Context, record *models.HistoryRecord) error
	Update(ctx context.Context, record *models.HistoryRecord) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.HistoryRecord, error)
}
