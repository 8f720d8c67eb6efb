package file

import (
	"context"
	"fmt"
	"os"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

const historyDir = "history"

// HistoryRepository stores one execution's audit trail as a single JSON
// document holding the ordered record list.
type HistoryRepository struct {
	p *Persistence
}

func (hr *HistoryRepository) Append(_ context.Context, record *models.HistoryRecord) error {
	if err := validateID(record.ExecutionID); err != nil {
		return &persistence.StoreError{Op: "Append", Key: record.ExecutionID, Err: err}
	}

	hr.p.mu.Lock()
	defer hr.p.mu.Unlock()

	records, err := hr.load(record.ExecutionID)
	if err != nil {
		return err
	}

	records = append(records, record)

	return hr.p.writeDocument(historyDir, record.ExecutionID, records)
}

func (hr *HistoryRepository) Update(_ context.Context, record *models.HistoryRecord) error {
	if err := validateID(record.ExecutionID); err != nil {
		return &persistence.StoreError{Op: "Update", Key: record.ExecutionID, Err: err}
	}

	hr.p.mu.Lock()
	defer hr.p.mu.Unlock()

	records, err := hr.load(record.ExecutionID)
	if err != nil {
		return err
	}

	for i, existing := range records {
		if existing.ID == record.ID {
			records[i] = record

			return hr.p.writeDocument(historyDir, record.ExecutionID, records)
		}
	}

	return fmt.Errorf("history record %s: %w", record.ID, persistence.ErrHistoryRecordNotFound)
}

func (hr *HistoryRepository) ListByExecution(_ context.Context, executionID string) ([]*models.HistoryRecord, error) {
	if err := validateID(executionID); err != nil {
		return nil, &persistence.StoreError{Op: "ListByExecution", Key: executionID, Err: err}
	}

	hr.p.mu.Lock()
	defer hr.p.mu.Unlock()

	// Records are appended in step order, which is also start-time order.
	return hr.load(executionID)
}

func (hr *HistoryRepository) load(executionID string) ([]*models.HistoryRecord, error) {
	records := make([]*models.HistoryRecord, 0)

	err := hr.p.readDocument(historyDir, executionID, &records)
	if err != nil && !os.IsNotExist(err) {
		return nil, &persistence.StoreError{Op: "load", Key: executionID, Err: err}
	}

	return records, nil
}
