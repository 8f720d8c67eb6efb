package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db *sql.DB
}

func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	query := `
		INSERT INTO executions (id, workflow_id, status, current_node_id, started_at, completed_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.CurrentNodeID,
		execution.StartedAt,
		execution.CompletedAt,
		execution.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, current_node_id, started_at, completed_at, error_message
		FROM executions
		WHERE id = $1
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, err
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, current_node_id, started_at, completed_at, error_message
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	return collectExecutions(rows)
}

func (r *ExecutionRepository) List(ctx context.Context, limit, offset int) ([]*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, current_node_id, started_at, completed_at, error_message
		FROM executions
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	return collectExecutions(rows)
}

// Delete removes the execution together with its variables and history.
func (r *ExecutionRepository) Delete(ctx context.Context, id string) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := transaction.ExecContext(ctx, "DELETE FROM executions WHERE id = $1", id)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to delete execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		_ = transaction.Rollback()

		return fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
	}

	_, err = transaction.ExecContext(ctx, "DELETE FROM variables WHERE execution_id = $1", id)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to delete variables: %w", err)
	}

	_, err = transaction.ExecContext(ctx, "DELETE FROM execution_history WHERE execution_id = $1", id)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to delete history: %w", err)
	}

	return transaction.Commit()
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		completedAt sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.CurrentNodeID,
		&execution.StartedAt,
		&completedAt,
		&execution.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return &execution, nil
}

func collectExecutions(rows *sql.Rows) ([]*models.Execution, error) {
	defer func() {
		_ = rows.Close()
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}
