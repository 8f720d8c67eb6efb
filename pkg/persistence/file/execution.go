package file

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository stores execution records as one JSON file each.
type ExecutionRepository struct {
	p *Persistence
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	if err := validateID(execution.ID); err != nil {
		return &persistence.StoreError{Op: "Save", Key: execution.ID, Err: err}
	}

	return er.p.writeDocument(executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	if err := validateID(id); err != nil {
		return nil, &persistence.StoreError{Op: "GetByID", Key: id, Err: err}
	}

	var execution models.Execution

	err := er.p.readDocument(executionsDir, id, &execution)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, &persistence.StoreError{Op: "GetByID", Key: id, Err: err}
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	all, err := er.list(ctx)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0)

	for _, execution := range all {
		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (er *ExecutionRepository) List(ctx context.Context, limit, offset int) ([]*models.Execution, error) {
	all, err := er.list(ctx)
	if err != nil {
		return nil, err
	}

	if offset >= len(all) {
		return []*models.Execution{}, nil
	}

	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}

func (er *ExecutionRepository) Delete(ctx context.Context, id string) error {
	if _, err := er.GetByID(ctx, id); err != nil {
		return err
	}

	er.p.mu.Lock()
	defer er.p.mu.Unlock()

	// Variables and history belong to the execution; remove them with it.
	_ = er.p.removeDocument(variablesDir, id)
	_ = er.p.removeDocument(historyDir, id)

	return er.p.removeDocument(executionsDir, id)
}

// list returns all executions ordered by start time, newest first.
func (er *ExecutionRepository) list(ctx context.Context) ([]*models.Execution, error) {
	ids, err := er.p.listDocuments(executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := er.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}
