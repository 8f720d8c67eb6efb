package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

// HistoryRepository handles audit-trail database operations.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, record *models.HistoryRecord) error {
	snapshotJSON, detailJSON, err := marshalHistoryJSON(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO execution_history (
			id, execution_id, node_id, node_type, node_name, status,
			started_at, completed_at, duration, output, error_message,
			variables_snapshot, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.ExecutionID,
		record.NodeID,
		record.NodeType,
		record.NodeName,
		record.Status,
		record.StartedAt,
		record.CompletedAt,
		record.Duration,
		record.Output,
		record.ErrorMessage,
		snapshotJSON,
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}

	return nil
}

func (r *HistoryRepository) Update(ctx context.Context, record *models.HistoryRecord) error {
	snapshotJSON, detailJSON, err := marshalHistoryJSON(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE execution_history SET
			status = $2,
			completed_at = $3,
			duration = $4,
			output = $5,
			error_message = $6,
			variables_snapshot = $7,
			detail = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Status,
		record.CompletedAt,
		record.Duration,
		record.Output,
		record.ErrorMessage,
		snapshotJSON,
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update history record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("history record %s: %w", record.ID, persistence.ErrHistoryRecordNotFound)
	}

	return nil
}

func (r *HistoryRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.HistoryRecord, error) {
	query := `
		SELECT id, execution_id, node_id, node_type, node_name, status,
			   started_at, completed_at, duration, output, error_message,
			   variables_snapshot, detail
		FROM execution_history
		WHERE execution_id = $1
		ORDER BY started_at
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.HistoryRecord, 0)

	for rows.Next() {
		var (
			record       models.HistoryRecord
			completedAt  sql.NullTime
			snapshotJSON []byte
			detailJSON   []byte
		)

		err = rows.Scan(
			&record.ID,
			&record.ExecutionID,
			&record.NodeID,
			&record.NodeType,
			&record.NodeName,
			&record.Status,
			&record.StartedAt,
			&completedAt,
			&record.Duration,
			&record.Output,
			&record.ErrorMessage,
			&snapshotJSON,
			&detailJSON,
		)
		if err != nil {
			return nil, err
		}

		if completedAt.Valid {
			record.CompletedAt = &completedAt.Time
		}

		if len(snapshotJSON) > 0 {
			err = json.Unmarshal(snapshotJSON, &record.VariablesSnapshot)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal variables snapshot: %w", err)
			}
		}

		if len(detailJSON) > 0 {
			err = json.Unmarshal(detailJSON, &record.Detail)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal detail: %w", err)
			}
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

func marshalHistoryJSON(record *models.HistoryRecord) ([]byte, []byte, error) {
	snapshotJSON, err := json.Marshal(record.VariablesSnapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal variables snapshot: %w", err)
	}

	detailJSON, err := json.Marshal(record.Detail)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal detail: %w", err)
	}

	return snapshotJSON, detailJSON, nil
}
