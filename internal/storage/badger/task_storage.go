package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TaskStorage implements the TaskStorage interface for Badger. Launched
// automation tasks are recorded here with their own start timestamp so the
// poller never has to infer timing from the backend's opaque task id.
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) Put(ctx context.Context, record *models.TaskRecord) error {
	if record.TaskID == "" {
		return fmt.Errorf("task ID is required")
	}
	if err := s.db.Store().Upsert(record.TaskID, record); err != nil {
		return fmt.Errorf("failed to store task record: %w", err)
	}
	return nil
}

func (s *TaskStorage) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	var record models.TaskRecord
	if err := s.db.Store().Get(taskID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task record: %w", err)
	}
	return &record, nil
}

func (s *TaskStorage) GetByOwner(ctx context.Context, ownerID string) ([]*models.TaskRecord, error) {
	var records []models.TaskRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("OwnerID").Eq(ownerID)); err != nil {
		return nil, fmt.Errorf("failed to find task records: %w", err)
	}

	result := make([]*models.TaskRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *TaskStorage) Delete(ctx context.Context, taskID string) error {
	if err := s.db.Store().Delete(taskID, &models.TaskRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete task record: %w", err)
	}
	return nil
}
