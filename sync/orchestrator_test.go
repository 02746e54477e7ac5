package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

var syncEpoch = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func syncRecord(id, amount string, updated time.Time) expensebuddy.Record {
	return expensebuddy.Record{
		ID:        id,
		Amount:    decimal.RequireFromString(amount),
		Category:  "food",
		Date:      expensebuddy.Date{Day: expensebuddy.NewDay(2026, time.August, 20)},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

type fakeRemote struct {
	state     RemoteState
	fetchErr  error
	commitErr error
	onFetch   func()

	fetches []int
	commits []CommitPlan
}

func (f *fakeRemote) Fetch(ctx context.Context, sinceDays int) (*RemoteState, error) {
	f.fetches = append(f.fetches, sinceDays)
	if f.onFetch != nil {
		f.onFetch()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	state := f.state
	return &state, nil
}

func (f *fakeRemote) Commit(ctx context.Context, plan CommitPlan) (CommitResult, error) {
	if f.commitErr != nil {
		return CommitResult{}, f.commitErr
	}
	f.commits = append(f.commits, plan)
	return CommitResult{Commit: fmt.Sprintf("commit-%d", len(f.commits))}, nil
}

type fakeStore struct {
	records    []expensebuddy.Record
	settings   *expensebuddy.Settings
	replaceErr error
	replaced   int
}

func (f *fakeStore) GetAll() ([]expensebuddy.Record, error) {
	return slices.Clone(f.records), nil
}

func (f *fakeStore) ReplaceAll(records []expensebuddy.Record) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.records = slices.Clone(records)
	f.replaced++
	return nil
}

func (f *fakeStore) Settings() (*expensebuddy.Settings, error) { return f.settings, nil }

func (f *fakeStore) ReplaceSettings(s *expensebuddy.Settings) error {
	f.settings = s
	return nil
}

// newTestOrchestrator fills cfg's state files and logger with test defaults
// and pins the clock to syncEpoch.
func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Hashes == nil {
		hs, err := OpenHashStore(t.TempDir() + "/hashes.json")
		if err != nil {
			t.Fatalf("OpenHashStore() error = %v", err)
		}
		cfg.Hashes = hs
	}
	if cfg.Tracker == nil {
		tr, err := OpenTracker(t.TempDir() + "/pending.json")
		if err != nil {
			t.Fatalf("OpenTracker() error = %v", err)
		}
		cfg.Tracker = tr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o.now = func() time.Time { return syncEpoch }
	return o
}

func TestSyncPushesAndPersists(t *testing.T) {
	remote := &fakeRemote{state: RemoteState{
		Records: []expensebuddy.Record{syncRecord("r2", "8.00", syncEpoch)},
		Paths:   []string{"records/2026-08-20.csv"},
	}}
	store := &fakeStore{records: []expensebuddy.Record{syncRecord("r1", "12.50", syncEpoch)}}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store})
	if err := o.tracker.TrackAdd("r1"); err != nil {
		t.Fatalf("TrackAdd() error = %v", err)
	}

	var report PushReport
	var res expensebuddy.MergeResult
	cb := Callbacks{
		OnSuccess: func(r expensebuddy.MergeResult, p PushReport) { res, report = r, p },
		OnError:   func(err error) { t.Errorf("OnError(%v) called", err) },
	}
	if err := o.Sync(context.Background(), cb); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if !slices.Equal(res.AddedFromLocal, []string{"r1"}) || !slices.Equal(res.AddedFromRemote, []string{"r2"}) {
		t.Errorf("merge classification = %+v", res)
	}
	if report.Commit != "commit-1" {
		t.Errorf("report.Commit = %q, want %q", report.Commit, "commit-1")
	}
	if !slices.Equal(report.Uploaded, []string{"records/2026-08-20.csv"}) {
		t.Errorf("report.Uploaded = %v", report.Uploaded)
	}
	if len(remote.commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(remote.commits))
	}
	plan := remote.commits[0]
	if plan.Message != "sync: 1 file updated" {
		t.Errorf("plan.Message = %q", plan.Message)
	}
	got, err := expensebuddy.DecodeRecords(bytes.NewReader(plan.Uploads[0].Content))
	if err != nil {
		t.Fatalf("uploaded partition does not decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Errorf("uploaded partition records = %+v", got)
	}

	if store.replaced != 1 || len(store.records) != 2 {
		t.Errorf("replica: replaced=%d records=%d, want 1 and 2", store.replaced, len(store.records))
	}
	if o.hashes.ShouldUpload("records/2026-08-20.csv", plan.Uploads[0].Content) {
		t.Error("uploaded bytes not remembered by hash store")
	}
	if got := o.tracker.Pending().Total(); got != 0 {
		t.Errorf("pending after sync = %d, want 0", got)
	}
	persisted, err := OpenHashStore(o.hashes.path)
	if err != nil {
		t.Fatalf("reopening hash store: %v", err)
	}
	if !persisted.Known("records/2026-08-20.csv") {
		t.Error("hash store not saved to disk after push")
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("State() = %s, want %s", got, StateIdle)
	}
}

func TestSyncInSyncIssuesNoCommit(t *testing.T) {
	shared := syncRecord("r1", "12.50", syncEpoch)
	remote := &fakeRemote{state: RemoteState{
		Records: []expensebuddy.Record{shared},
		Paths:   []string{"records/2026-08-20.csv"},
	}}
	store := &fakeStore{records: []expensebuddy.Record{shared}}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store})

	inSync := false
	cb := Callbacks{
		OnInSync:  func(expensebuddy.MergeResult) { inSync = true },
		OnSuccess: func(expensebuddy.MergeResult, PushReport) { t.Error("OnSuccess called") },
	}
	if err := o.Sync(context.Background(), cb); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !inSync {
		t.Error("OnInSync not called")
	}
	if len(remote.commits) != 0 {
		t.Errorf("commits = %d, want 0", len(remote.commits))
	}
	if store.replaced != 1 {
		t.Errorf("replica replaced %d times, want 1", store.replaced)
	}
}

func TestSyncPushFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("boom")
	remote := &fakeRemote{commitErr: boom}
	store := &fakeStore{records: []expensebuddy.Record{syncRecord("r1", "12.50", syncEpoch)}}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store})
	if err := o.tracker.TrackAdd("r1"); err != nil {
		t.Fatalf("TrackAdd() error = %v", err)
	}

	var reported error
	err := o.Sync(context.Background(), Callbacks{OnError: func(e error) { reported = e }})
	if !errors.Is(err, boom) {
		t.Fatalf("Sync() error = %v, want %v", err, boom)
	}
	if !errors.Is(reported, boom) {
		t.Errorf("OnError got %v, want %v", reported, boom)
	}
	if store.replaced != 0 {
		t.Error("replica replaced despite failed push")
	}
	if got := o.tracker.Pending().Total(); got != 1 {
		t.Errorf("pending after failed push = %d, want 1", got)
	}
	if o.hashes.Known("records/2026-08-20.csv") {
		t.Error("hash store learned bytes despite failed push")
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("State() = %s, want %s", got, StateIdle)
	}
}

func TestSyncConflictSuspendResolve(t *testing.T) {
	remote := &fakeRemote{state: RemoteState{
		Records: []expensebuddy.Record{syncRecord("r1", "12.00", syncEpoch.Add(5*time.Second))},
		Paths:   []string{"records/2026-08-20.csv"},
	}}
	store := &fakeStore{records: []expensebuddy.Record{syncRecord("r1", "10.00", syncEpoch)}}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store})

	var res expensebuddy.MergeResult
	cb := Callbacks{
		OnConflict: func(ctx context.Context, conflicts []expensebuddy.Conflict) ([]expensebuddy.Resolution, error) {
			if len(conflicts) != 1 || conflicts[0].ID != "r1" {
				t.Fatalf("conflicts = %+v", conflicts)
			}
			if got := o.State(); got != StateConflict {
				t.Errorf("State() during resolution = %s, want %s", got, StateConflict)
			}
			if err := o.Sync(ctx, Callbacks{}); !errors.Is(err, ErrSyncInFlight) {
				t.Errorf("nested Sync() error = %v, want ErrSyncInFlight", err)
			}
			return []expensebuddy.Resolution{{ID: "r1", Chosen: conflicts[0].Local}}, nil
		},
		OnSuccess: func(r expensebuddy.MergeResult, _ PushReport) { res = r },
	}
	if err := o.Sync(context.Background(), cb); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if !slices.Equal(res.UpdatedFromLocal, []string{"r1"}) {
		t.Errorf("UpdatedFromLocal = %v, want [r1]", res.UpdatedFromLocal)
	}
	if len(res.TrueConflicts) != 0 {
		t.Errorf("TrueConflicts = %+v after resolution", res.TrueConflicts)
	}
	if len(store.records) != 1 || !store.records[0].Amount.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("replica = %+v, want the locally chosen version", store.records)
	}
	if len(remote.commits) != 1 {
		t.Errorf("commits = %d, want 1", len(remote.commits))
	}
}

func TestSyncConflictAborted(t *testing.T) {
	remote := &fakeRemote{state: RemoteState{
		Records: []expensebuddy.Record{syncRecord("r1", "12.00", syncEpoch.Add(5*time.Second))},
	}}
	store := &fakeStore{records: []expensebuddy.Record{syncRecord("r1", "10.00", syncEpoch)}}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store})

	cb := Callbacks{
		OnConflict: func(context.Context, []expensebuddy.Conflict) ([]expensebuddy.Resolution, error) {
			return nil, ErrResolutionAborted
		},
		OnError: func(err error) { t.Errorf("OnError(%v) called for an abort", err) },
	}
	err := o.Sync(context.Background(), cb)
	if !errors.Is(err, ErrResolutionAborted) {
		t.Fatalf("Sync() error = %v, want ErrResolutionAborted", err)
	}
	if len(remote.commits) != 0 || store.replaced != 0 {
		t.Error("aborted cycle wrote state")
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("State() = %s, want %s", got, StateIdle)
	}
}

func TestSyncCancel(t *testing.T) {
	t.Run("during fetch", func(t *testing.T) {
		remote := &fakeRemote{}
		store := &fakeStore{}
		o := newTestOrchestrator(t, Config{Remote: remote, Store: store})
		remote.onFetch = o.Cancel

		err := o.Sync(context.Background(), Callbacks{
			OnError: func(err error) { t.Errorf("OnError(%v) called for a cancel", err) },
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Sync() error = %v, want context.Canceled", err)
		}
		if got := o.State(); got != StateIdle {
			t.Errorf("State() = %s, want %s", got, StateIdle)
		}
	})

	t.Run("before push", func(t *testing.T) {
		remote := &fakeRemote{state: RemoteState{
			Records: []expensebuddy.Record{syncRecord("r1", "12.00", syncEpoch.Add(5*time.Second))},
		}}
		store := &fakeStore{records: []expensebuddy.Record{syncRecord("r1", "10.00", syncEpoch)}}
		o := newTestOrchestrator(t, Config{Remote: remote, Store: store})

		cb := Callbacks{
			OnConflict: func(_ context.Context, conflicts []expensebuddy.Conflict) ([]expensebuddy.Resolution, error) {
				o.Cancel()
				return []expensebuddy.Resolution{{ID: "r1", Chosen: conflicts[0].Remote}}, nil
			},
		}
		err := o.Sync(context.Background(), cb)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Sync() error = %v, want context.Canceled", err)
		}
		if len(remote.commits) != 0 || store.replaced != 0 {
			t.Error("cancelled cycle wrote state")
		}
		if got := o.State(); got != StateIdle {
			t.Errorf("State() = %s, want %s", got, StateIdle)
		}
	})
}

func TestLoadMoreWidensWindow(t *testing.T) {
	remote := &fakeRemote{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store, WindowDays: 90})

	if err := o.LoadMore(context.Background(), 30, Callbacks{}); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	if got := o.Window(); got != 120 {
		t.Errorf("Window() = %d, want 120", got)
	}
	if err := o.Sync(context.Background(), Callbacks{}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !slices.Equal(remote.fetches, []int{120, 120}) {
		t.Errorf("fetch windows = %v, want [120 120]", remote.fetches)
	}

	if err := o.LoadMore(context.Background(), 0, Callbacks{}); err == nil {
		t.Error("LoadMore(0) did not fail")
	}
}

func TestLoadMoreKeepsFullHistoryWindow(t *testing.T) {
	remote := &fakeRemote{}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: &fakeStore{}})

	if err := o.LoadMore(context.Background(), 30, Callbacks{}); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	if got := o.Window(); got != 0 {
		t.Errorf("Window() = %d, want 0 (full history)", got)
	}
	if !slices.Equal(remote.fetches, []int{0}) {
		t.Errorf("fetch windows = %v, want [0]", remote.fetches)
	}
}

func TestSyncSettingsDocument(t *testing.T) {
	t0 := syncEpoch.Add(-time.Hour)
	t1 := syncEpoch
	shared := syncRecord("r1", "12.50", t0)
	remote := &fakeRemote{state: RemoteState{
		Records: []expensebuddy.Record{shared},
		Paths:   []string{"records/2026-08-20.csv"},
		Settings: &expensebuddy.Settings{
			Currency:  "EUR",
			UpdatedAt: t0,
			Entries:   []expensebuddy.Setting{{ID: "week_start", Value: "monday", UpdatedAt: t0}},
		},
	}}
	store := &fakeStore{
		records: []expensebuddy.Record{shared},
		settings: &expensebuddy.Settings{
			Currency:  "EUR",
			UpdatedAt: t1,
			Entries:   []expensebuddy.Setting{{ID: "theme", Value: "dark", UpdatedAt: t1}},
		},
	}
	o := newTestOrchestrator(t, Config{Remote: remote, Store: store, SyncSettings: true})

	if err := o.Sync(context.Background(), Callbacks{}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(remote.commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(remote.commits))
	}
	plan := remote.commits[0]
	if len(plan.Uploads) != 1 || plan.Uploads[0].Path != expensebuddy.SettingsFile {
		t.Fatalf("uploads = %+v, want just %s", plan.Uploads, expensebuddy.SettingsFile)
	}
	merged, err := expensebuddy.DecodeSettings(bytes.NewReader(plan.Uploads[0].Content))
	if err != nil {
		t.Fatalf("uploaded settings do not decode: %v", err)
	}
	if len(merged.Entries) != 2 {
		t.Errorf("merged entries = %+v, want theme and week_start", merged.Entries)
	}
	if len(store.settings.Entries) != 2 {
		t.Errorf("replica settings entries = %+v, want both", store.settings.Entries)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	remote := &fakeRemote{}
	store := &fakeStore{}
	hs, err := OpenHashStore(t.TempDir() + "/hashes.json")
	if err != nil {
		t.Fatalf("OpenHashStore() error = %v", err)
	}
	tr, err := OpenTracker(t.TempDir() + "/pending.json")
	if err != nil {
		t.Fatalf("OpenTracker() error = %v", err)
	}

	testCases := []struct {
		name string
		cfg  Config
	}{
		{"missing remote", Config{Store: store, Hashes: hs, Tracker: tr}},
		{"missing store", Config{Remote: remote, Hashes: hs, Tracker: tr}},
		{"missing hashes", Config{Remote: remote, Store: store, Tracker: tr}},
		{"missing tracker", Config{Remote: remote, Store: store, Hashes: hs}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("New() accepted an incomplete config")
			}
		})
	}
}
