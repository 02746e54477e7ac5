package sync

import (
	"slices"
	"testing"
	"time"

	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

func dayRecord(id string, day expensebuddy.Day) expensebuddy.Record {
	r := syncRecord(id, "5.00", syncEpoch)
	r.Date = expensebuddy.Date{Day: day}
	return r
}

func uploadPaths(plan CommitPlan) []string {
	var paths []string
	for _, up := range plan.Uploads {
		paths = append(paths, up.Path)
	}
	return paths
}

func TestBuildPlanWindowSafety(t *testing.T) {
	hashes, err := OpenHashStore(t.TempDir() + "/hashes.json")
	if err != nil {
		t.Fatalf("OpenHashStore() error = %v", err)
	}
	// 2025-11-11 was pushed once and has since disappeared remotely:
	// re-uploading it would resurrect a partition deleted elsewhere.
	hashes.Remember("records/2025-11-11.csv", []byte("previously synced"))

	merged := []expensebuddy.Record{
		dayRecord("in", expensebuddy.NewDay(2026, time.August, 1)),
		dayRecord("out-existing", expensebuddy.NewDay(2026, time.January, 5)),
		dayRecord("backfill", expensebuddy.NewDay(2025, time.December, 25)),
		dayRecord("resurrect", expensebuddy.NewDay(2025, time.November, 11)),
	}
	remotePaths := []string{
		"records/2026-08-01.csv", // in window, merged: rewritten when changed
		"records/2026-01-05.csv", // out of window: never touched
		"records/2026-08-05.csv", // in window, no merged records: deleted
		"records/2026-03-10.csv", // out of window, no merged records: kept
		"records/notes.csv",      // not a partition: not ours to manage
	}
	today := expensebuddy.NewDay(2026, time.August, 20)

	plan, err := buildPlan(hashes, merged, nil, remotePaths, 90, today)
	if err != nil {
		t.Fatalf("buildPlan() error = %v", err)
	}

	wantUploads := []string{"records/2025-12-25.csv", "records/2026-08-01.csv"}
	if got := uploadPaths(plan); !slices.Equal(got, wantUploads) {
		t.Errorf("uploads = %v, want %v", got, wantUploads)
	}
	wantDeletions := []string{"records/2026-08-05.csv"}
	if !slices.Equal(plan.Deletions, wantDeletions) {
		t.Errorf("deletions = %v, want %v", plan.Deletions, wantDeletions)
	}
	if want := "sync: 2 files updated, 1 deleted"; plan.Message != want {
		t.Errorf("message = %q, want %q", plan.Message, want)
	}
}

func TestBuildPlanSkipsUnchangedPartitions(t *testing.T) {
	hashes, err := OpenHashStore(t.TempDir() + "/hashes.json")
	if err != nil {
		t.Fatalf("OpenHashStore() error = %v", err)
	}
	merged := []expensebuddy.Record{dayRecord("r1", expensebuddy.NewDay(2026, time.August, 19))}
	parts, err := expensebuddy.Partitions(merged)
	if err != nil {
		t.Fatalf("Partitions() error = %v", err)
	}
	hashes.Remember("records/2026-08-19.csv", parts["records/2026-08-19.csv"])

	today := expensebuddy.NewDay(2026, time.August, 20)
	plan, err := buildPlan(hashes, merged, nil, []string{"records/2026-08-19.csv"}, 90, today)
	if err != nil {
		t.Fatalf("buildPlan() error = %v", err)
	}
	if !plan.Empty() {
		t.Errorf("plan = %+v, want empty", plan)
	}
	if plan.Message != "" {
		t.Errorf("message = %q, want empty", plan.Message)
	}
}

func TestBuildPlanFullHistoryWindow(t *testing.T) {
	hashes, err := OpenHashStore(t.TempDir() + "/hashes.json")
	if err != nil {
		t.Fatalf("OpenHashStore() error = %v", err)
	}
	merged := []expensebuddy.Record{dayRecord("r1", expensebuddy.NewDay(2026, time.August, 1))}
	remotePaths := []string{"records/2026-01-05.csv"}
	today := expensebuddy.NewDay(2026, time.August, 20)

	plan, err := buildPlan(hashes, merged, nil, remotePaths, 0, today)
	if err != nil {
		t.Fatalf("buildPlan() error = %v", err)
	}
	if got, want := uploadPaths(plan), []string{"records/2026-08-01.csv"}; !slices.Equal(got, want) {
		t.Errorf("uploads = %v, want %v", got, want)
	}
	if got, want := plan.Deletions, []string{"records/2026-01-05.csv"}; !slices.Equal(got, want) {
		t.Errorf("deletions = %v, want %v", got, want)
	}
	if want := "sync: 1 file updated, 1 deleted"; plan.Message != want {
		t.Errorf("message = %q, want %q", plan.Message, want)
	}
}
