// Package repository provides unit tests for the run repository.
package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mtheof04/Ade-Scripts/internal/app/usecase"
	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
	"github.com/mtheof04/Ade-Scripts/internal/infra/database"
)

// setupRunTestDB creates a file-backed SQLite database in a temp dir.
func setupRunTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.InitializeSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("initialize sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord() *run.Record {
	return &run.Record{
		ID:       uuid.New().String(),
		Engine:   "mserver5",
		Workload: "q1",
		Config: run.Config{
			TargetCumulative: 2 * time.Minute,
			MinIterations:    3,
			WarmupCount:      1,
		},
		State:     run.StatePending,
		OutputDir: "/tmp/results",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestSQLiteRunRepository_SaveAndFind tests persisting and reloading a run.
func TestSQLiteRunRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	rec := testRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Engine != "mserver5" || got.Workload != "q1" {
		t.Errorf("got engine/workload = %s/%s", got.Engine, got.Workload)
	}
	if got.State != run.StatePending {
		t.Errorf("State = %s, want pending", got.State)
	}
	if got.Config.TargetCumulative != 2*time.Minute || got.Config.MinIterations != 3 {
		t.Errorf("Config = %+v", got.Config)
	}
	if got.OutputDir != "/tmp/results" {
		t.Errorf("OutputDir = %q", got.OutputDir)
	}
}

// TestSQLiteRunRepository_SaveUpdates tests the upsert path with a completed
// outcome.
func TestSQLiteRunRepository_SaveUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	rec := testRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	started := rec.CreatedAt.Add(time.Second)
	completed := started.Add(95 * time.Second)
	rec.State = run.StateCompleted
	rec.StartedAt = &started
	rec.CompletedAt = &completed
	rec.CalculateDuration()
	rec.Outcome = &run.Outcome{
		Iterations: []run.IterationResult{
			{Index: 1, StartedAt: started, CompletedAt: started.Add(30 * time.Second), Duration: 30 * time.Second},
		},
		Cumulative: 90 * time.Second,
		TotalWall:  95 * time.Second,
	}

	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() update error = %v", err)
	}

	got, err := repo.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.State != run.StateCompleted {
		t.Errorf("State = %s, want completed", got.State)
	}
	if got.Outcome == nil || got.Outcome.Cumulative != 90*time.Second {
		t.Errorf("Outcome = %+v", got.Outcome)
	}
	if got.Duration == nil || *got.Duration != 95*time.Second {
		t.Errorf("Duration = %v, want 95s", got.Duration)
	}
}

// TestSQLiteRunRepository_FindByID_NotFound tests the not-found sentinel.
func TestSQLiteRunRepository_FindByID_NotFound(t *testing.T) {
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	if _, err := repo.FindByID(context.Background(), "missing"); err != ErrRunNotFound {
		t.Errorf("FindByID() error = %v, want ErrRunNotFound", err)
	}
}

// TestSQLiteRunRepository_FindAll tests filtering and pagination.
func TestSQLiteRunRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	for i := 0; i < 5; i++ {
		rec := testRecord()
		rec.CreatedAt = rec.CreatedAt.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			rec.State = run.StateCompleted
		}
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	all, err := repo.FindAll(ctx, usecase.FindOptions{})
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len = %d, want 5", len(all))
	}
	// Newest first.
	if all[0].CreatedAt.Before(all[4].CreatedAt) {
		t.Error("FindAll() not ordered newest first")
	}

	completed := run.StateCompleted
	filtered, err := repo.FindAll(ctx, usecase.FindOptions{StateFilter: &completed})
	if err != nil {
		t.Fatalf("FindAll(filtered) error = %v", err)
	}
	if len(filtered) != 3 {
		t.Errorf("filtered len = %d, want 3", len(filtered))
	}

	limited, err := repo.FindAll(ctx, usecase.FindOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("FindAll(limited) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}
}

// TestSQLiteRunRepository_UpdateState tests state updates against the stored
// state machine.
func TestSQLiteRunRepository_UpdateState(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	rec := testRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := repo.UpdateState(ctx, rec.ID, run.StateRunning); err != nil {
		t.Fatalf("UpdateState(running) error = %v", err)
	}
	got, _ := repo.FindByID(ctx, rec.ID)
	if got.State != run.StateRunning {
		t.Errorf("State = %s, want running", got.State)
	}

	// running -> warming_up is not a valid transition.
	if err := repo.UpdateState(ctx, rec.ID, run.StateWarmingUp); err == nil {
		t.Error("UpdateState(running -> warming_up) expected error")
	}

	if err := repo.UpdateState(ctx, "missing", run.StateRunning); err != ErrRunNotFound {
		t.Errorf("UpdateState(missing) error = %v, want ErrRunNotFound", err)
	}
}

// TestSQLiteRunRepository_Iterations tests iteration persistence and order.
func TestSQLiteRunRepository_Iterations(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	rec := testRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 3; i >= 1; i-- {
		it := run.IterationResult{
			Index:       i,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Duration:    30 * time.Second,
		}
		if err := repo.SaveIteration(ctx, rec.ID, it); err != nil {
			t.Fatalf("SaveIteration() error = %v", err)
		}
	}

	iterations, err := repo.GetIterations(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetIterations() error = %v", err)
	}
	if len(iterations) != 3 {
		t.Fatalf("len = %d, want 3", len(iterations))
	}
	for i, it := range iterations {
		if it.Index != i+1 {
			t.Errorf("iterations[%d].Index = %d, want %d", i, it.Index, i+1)
		}
		if it.Duration != 30*time.Second {
			t.Errorf("iterations[%d].Duration = %s", i, it.Duration)
		}
	}
}

// TestSQLiteRunRepository_LogEntries tests log entry persistence.
func TestSQLiteRunRepository_LogEntries(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	rec := testRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entry := usecase.LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Stream:    "error",
		Content:   "monitor teardown warning: monitor iostat: confirm exit: timeout",
	}
	if err := repo.SaveLogEntry(ctx, rec.ID, entry); err != nil {
		t.Fatalf("SaveLogEntry() error = %v", err)
	}
}

// TestSQLiteRunRepository_Delete tests run deletion with iteration cascade.
func TestSQLiteRunRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRunRepository(setupRunTestDB(t))

	rec := testRecord()
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.SaveIteration(ctx, rec.ID, run.IterationResult{Index: 1, StartedAt: time.Now(), CompletedAt: time.Now(), Duration: time.Second}); err != nil {
		t.Fatalf("SaveIteration() error = %v", err)
	}

	if err := repo.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.FindByID(ctx, rec.ID); err != ErrRunNotFound {
		t.Errorf("FindByID() after delete error = %v, want ErrRunNotFound", err)
	}
	iterations, err := repo.GetIterations(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetIterations() error = %v", err)
	}
	if len(iterations) != 0 {
		t.Errorf("iterations after delete = %d, want 0", len(iterations))
	}

	if err := repo.Delete(ctx, "missing"); err != ErrRunNotFound {
		t.Errorf("Delete(missing) error = %v, want ErrRunNotFound", err)
	}
}
