package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
	"github.com/ccxxllhl2/ai-workflow/pkg/variables"
)

// historyRecorder writes the audit trail for node executions. Every node
// visit produces exactly one record: opened when processing starts, closed
// once with the final status.
type historyRecorder struct {
	repo  persistence.HistoryRepository
	store *variables.Store
}

func newHistoryRecorder(repo persistence.HistoryRepository, store *variables.Store) *historyRecorder {
	return &historyRecorder{repo: repo, store: store}
}

// openStep appends a started record, snapshotting the variable state the
// node saw on entry.
func (r *historyRecorder) openStep(ctx context.Context, executionID string, node *models.Node) (*models.HistoryRecord, error) {
	snapshot, err := r.store.GetAll(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot variables: %w", err)
	}

	record := &models.HistoryRecord{
		ID:                uuid.New().String(),
		ExecutionID:       executionID,
		NodeID:            node.ID,
		NodeType:          node.Type,
		NodeName:          node.Name,
		Status:            models.HistoryStatusStarted,
		StartedAt:         time.Now().UTC(),
		VariablesSnapshot: snapshot,
	}

	err = r.repo.Append(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to append history record: %w", err)
	}

	return record, nil
}

// closeStep finalizes a previously opened record with the node's outcome.
func (r *historyRecorder) closeStep(ctx context.Context, record *models.HistoryRecord, status models.HistoryStatus, outcome *models.Outcome) error {
	now := time.Now().UTC()
	record.Status = status
	record.CompletedAt = &now
	record.Duration = now.Sub(record.StartedAt).Seconds()

	if outcome != nil {
		record.Output = outcome.Output
		record.ErrorMessage = outcome.ErrorMessage
		record.Detail = outcome.Detail
	}

	err := r.repo.Update(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to update history record: %w", err)
	}

	return nil
}
