package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gridley-labs/fanout/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testSession(id string) *models.Session {
	return &models.Session{
		ID:             id,
		RequestText:    "Add X",
		RepositoryRef:  "/repo",
		BaseBranch:     "main",
		MergeStrategy:  models.StrategySinglePR,
		MaxConcurrency: 3,
		WorkerTimeout:  15 * time.Minute,
		Status:         models.SessionCreated,
		CreatedAt:      time.Now(),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)

	want := testSession("sess1")
	if err := db.CreateSession(want); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := db.GetSession("sess1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.RequestText != want.RequestText || got.MergeStrategy != want.MergeStrategy {
		t.Errorf("got %+v", got)
	}
	if got.WorkerTimeout != 15*time.Minute {
		t.Errorf("WorkerTimeout = %v", got.WorkerTimeout)
	}
}

func TestGetSessionMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestUpdateSessionStatusAndActiveIDs(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"sess1", "sess2"} {
		if err := db.CreateSession(testSession(id)); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	if err := db.UpdateSessionStatus("sess1", models.SessionCompleted); err != nil {
		t.Fatalf("UpdateSessionStatus: %v", err)
	}

	active, err := db.ActiveSessionIDs()
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(active) != 1 || active[0] != "sess2" {
		t.Errorf("active = %v", active)
	}
}

func TestTasksRoundTripOrderedByPriority(t *testing.T) {
	db := openTestDB(t)
	if err := db.CreateSession(testSession("sess1")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tasks := []*models.Task{
		{ID: "t2", Name: "frontend", Priority: 2, Status: models.TaskPending, ScopePaths: []string{"web/"}},
		{ID: "t1", Name: "backend", Priority: 1, Status: models.TaskPending, BoundaryPaths: []string{"web/"}},
	}
	if err := db.CreateTasks("sess1", tasks); err != nil {
		t.Fatalf("CreateTasks: %v", err)
	}

	got, err := db.ListTasks("sess1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if len(got[0].BoundaryPaths) != 1 || got[0].BoundaryPaths[0] != "web/" {
		t.Errorf("boundary paths = %v", got[0].BoundaryPaths)
	}

	if err := db.UpdateTaskStatus("sess1", "t1", models.TaskCompleted); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	got, _ = db.ListTasks("sess1")
	if got[0].Status != models.TaskCompleted {
		t.Errorf("status = %s", got[0].Status)
	}
}

func TestWorkerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.CreateSession(testSession("sess1")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	now := time.Now()
	w := &models.Worker{
		TaskID:            "t1",
		Branch:            "fanout/sess1/t1",
		Status:            models.WorkerRunning,
		StartedAt:         now,
		CommitCount:       0,
		ModifiedFileCount: 0,
	}
	if err := db.SaveWorker("sess1", w); err != nil {
		t.Fatalf("SaveWorker: %v", err)
	}

	// Terminal update replaces the record.
	done := now.Add(time.Minute)
	w.Status = models.WorkerCompleted
	w.CommitCount = 2
	w.CompletedAt = &done
	if err := db.SaveWorker("sess1", w); err != nil {
		t.Fatalf("SaveWorker update: %v", err)
	}

	got, err := db.ListWorkers("sess1")
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Status != models.WorkerCompleted || got[0].CommitCount != 2 {
		t.Errorf("worker = %+v", got[0])
	}
	if got[0].CompletedAt == nil {
		t.Error("expected CompletedAt to round-trip")
	}
}

func TestMergeResultRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.CreateSession(testSession("sess1")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	results := []models.MergeResult{
		{TaskID: "t1", Outcome: models.OutcomeMerged, Branch: "fanout/sess1/t1", ArtifactRef: "pr-1"},
		{TaskID: "t2", Outcome: models.OutcomeConflictUnresolved, Detail: "overlapping edits in main.go"},
		{Outcome: models.OutcomeMerged, ArtifactRef: "issue-9"}, // session aggregate
	}
	for i := range results {
		if err := db.SaveMergeResult("sess1", &results[i]); err != nil {
			t.Fatalf("SaveMergeResult: %v", err)
		}
	}

	got, err := db.ListMergeResults("sess1")
	if err != nil {
		t.Fatalf("ListMergeResults: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
