package file

import (
	"context"
	"fmt"
	"os"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository stores workflow definitions as one JSON file each.
type WorkflowRepository struct {
	p *Persistence
}

func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := wr.p.listDocuments(workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	if err := validateID(id); err != nil {
		return nil, &persistence.StoreError{Op: "GetByID", Key: id, Err: err}
	}

	var workflow models.Workflow

	err := wr.p.readDocument(workflowsDir, id, &workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return nil, &persistence.StoreError{Op: "GetByID", Key: id, Err: err}
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID); err != nil {
		return &persistence.StoreError{Op: "Save", Key: workflow.ID, Err: err}
	}

	return wr.p.writeDocument(workflowsDir, workflow.ID, workflow)
}

func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if _, err := wr.GetByID(ctx, id); err != nil {
		return err
	}

	return wr.p.removeDocument(workflowsDir, id)
}
