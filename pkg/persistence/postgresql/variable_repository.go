package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

// VariableRepository handles variable-related database operations.
type VariableRepository struct {
	db *sql.DB
}

func NewVariableRepository(db *sql.DB) *VariableRepository {
	return &VariableRepository{db: db}
}

func (r *VariableRepository) Upsert(ctx context.Context, variable *models.Variable) error {
	query := `
		INSERT INTO variables (execution_id, name, value, kind, created_by_node)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (execution_id, name) DO UPDATE SET
			value = EXCLUDED.value,
			kind = EXCLUDED.kind,
			created_by_node = EXCLUDED.created_by_node
	`

	_, err := r.db.ExecContext(ctx, query,
		variable.ExecutionID,
		variable.Name,
		variable.Value,
		variable.Kind,
		variable.CreatedByNode,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert variable: %w", err)
	}

	return nil
}

func (r *VariableRepository) GetByName(ctx context.Context, executionID, name string) (*models.Variable, error) {
	query := `
		SELECT execution_id, name, value, kind, created_by_node
		FROM variables
		WHERE execution_id = $1 AND name = $2
	`

	var variable models.Variable

	err := r.db.QueryRowContext(ctx, query, executionID, name).Scan(
		&variable.ExecutionID,
		&variable.Name,
		&variable.Value,
		&variable.Kind,
		&variable.CreatedByNode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("variable %s: %w", name, persistence.ErrVariableNotFound)
		}

		return nil, fmt.Errorf("failed to query variable: %w", err)
	}

	return &variable, nil
}

func (r *VariableRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.Variable, error) {
	query := `
		SELECT execution_id, name, value, kind, created_by_node
		FROM variables
		WHERE execution_id = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	variables := make([]*models.Variable, 0)

	for rows.Next() {
		var variable models.Variable

		err = rows.Scan(
			&variable.ExecutionID,
			&variable.Name,
			&variable.Value,
			&variable.Kind,
			&variable.CreatedByNode,
		)
		if err != nil {
			return nil, err
		}

		variables = append(variables, &variable)
	}

	return variables, rows.Err()
}
