package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
)

func TestTaskRecordPersistence(t *testing.T) {
	db := openTestDB(t)
	storage := NewTaskStorage(db, arbor.NewLogger())
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	record := &models.TaskRecord{
		TaskID:    "task-1",
		OwnerID:   "biz-1",
		Identity:  "a@example.com",
		StartedAt: started,
	}
	if err := storage.Put(ctx, record); err != nil {
		t.Fatalf("Failed to store task record: %v", err)
	}

	got, err := storage.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Failed to get task record: %v", err)
	}
	if got.OwnerID != "biz-1" || !got.StartedAt.Equal(started) {
		t.Errorf("Unexpected record: %+v", got)
	}

	if _, err := storage.Get(ctx, "missing"); !errors.Is(err, interfaces.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskRecordsByOwner(t *testing.T) {
	db := openTestDB(t)
	storage := NewTaskStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, id := range []string{"task-1", "task-2"} {
		record := &models.TaskRecord{TaskID: id, OwnerID: "biz-1", Identity: "a@example.com", StartedAt: time.Now()}
		if err := storage.Put(ctx, record); err != nil {
			t.Fatal(err)
		}
	}
	other := &models.TaskRecord{TaskID: "task-3", OwnerID: "biz-2", Identity: "b@example.com", StartedAt: time.Now()}
	if err := storage.Put(ctx, other); err != nil {
		t.Fatal(err)
	}

	records, err := storage.GetByOwner(ctx, "biz-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records for biz-1, got %d", len(records))
	}
}

func TestTaskRecordDelete(t *testing.T) {
	db := openTestDB(t)
	storage := NewTaskStorage(db, arbor.NewLogger())
	ctx := context.Background()

	record := &models.TaskRecord{TaskID: "task-1", OwnerID: "biz-1", StartedAt: time.Now()}
	if err := storage.Put(ctx, record); err != nil {
		t.Fatal(err)
	}

	if err := storage.Delete(ctx, "task-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Get(ctx, "task-1"); !errors.Is(err, interfaces.ErrTaskNotFound) {
		t.Errorf("Expected record gone, got %v", err)
	}

	// Deleting again is a no-op
	if err := storage.Delete(ctx, "task-1"); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}
