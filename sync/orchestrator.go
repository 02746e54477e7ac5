package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

var (
	// ErrSyncInFlight is returned when a cycle is requested while another
	// one is still running. Callers retry once the running cycle ends.
	ErrSyncInFlight = errors.New("sync already in flight")
	// ErrResolutionAborted is returned by OnConflict to abandon the cycle
	// cleanly: nothing is written anywhere.
	ErrResolutionAborted = errors.New("conflict resolution aborted")
)

// LocalStore is the replica the orchestrator reads whole and replaces whole.
type LocalStore interface {
	GetAll() ([]expensebuddy.Record, error)
	ReplaceAll([]expensebuddy.Record) error
}

// SettingsStore is optionally implemented by local stores that also hold
// the replicated settings document.
type SettingsStore interface {
	Settings() (*expensebuddy.Settings, error)
	ReplaceSettings(*expensebuddy.Settings) error
}

// RemoteState is everything one fetch learned about the remote ledger.
type RemoteState struct {
	Records  []expensebuddy.Record
	Settings *expensebuddy.Settings
	// Paths lists every partition file present on the remote, fetched or
	// not, so the planner never touches a partition it has not seen.
	Paths []string
}

// FileUpload is one file of a commit plan.
type FileUpload struct {
	Path    string
	Content []byte
}

// CommitPlan is the full set of remote writes for one cycle. It is applied
// as a single commit: either every file lands or none does.
type CommitPlan struct {
	Uploads   []FileUpload
	Deletions []string
	Message   string
}

// Empty reports whether the plan carries no write at all.
func (p CommitPlan) Empty() bool { return len(p.Uploads) == 0 && len(p.Deletions) == 0 }

// CommitResult identifies the commit a plan produced.
type CommitResult struct {
	Commit string
}

// Remote is the ledger hosting service.
type Remote interface {
	// Fetch returns the remote state, limited to partitions of the last
	// sinceDays days when sinceDays is positive.
	Fetch(ctx context.Context, sinceDays int) (*RemoteState, error)
	// Commit applies a plan atomically and fails fast when the branch
	// moved since Fetch.
	Commit(ctx context.Context, plan CommitPlan) (CommitResult, error)
}

// PushReport summarizes what a cycle wrote remotely. An empty report means
// the remote already matched the merged set.
type PushReport struct {
	Commit   string
	Uploaded []string
	Deleted  []string
}

// Empty reports whether the cycle needed no commit.
func (r PushReport) Empty() bool { return r.Commit == "" }

// Callbacks connects a cycle to its caller. All fields are optional except
// that a cycle hitting true conflicts without an OnConflict aborts.
type Callbacks struct {
	// OnConflict is called with the cycle suspended; it may block for as
	// long as it takes a human to pick sides. Returning resolutions
	// resumes the merge; returning an error (ErrResolutionAborted for a
	// clean abandon) ends the cycle without writing anything.
	OnConflict func(ctx context.Context, conflicts []expensebuddy.Conflict) ([]expensebuddy.Resolution, error)
	// OnSuccess reports a cycle that pushed a commit.
	OnSuccess func(res expensebuddy.MergeResult, push PushReport)
	// OnInSync reports a cycle that found nothing to push.
	OnInSync func(res expensebuddy.MergeResult)
	// OnError reports a failed cycle.
	OnError func(err error)
}

// Config assembles an Orchestrator.
type Config struct {
	Remote  Remote
	Store   LocalStore
	Hashes  *HashStore
	Tracker *Tracker

	// ConflictThreshold is the merge trust window. Zero means
	// expensebuddy.DefaultConflictThreshold, negative disables true
	// conflicts entirely.
	ConflictThreshold time.Duration
	// WindowDays bounds how many days back cycles fetch. Zero or negative
	// means the full history.
	WindowDays int
	// SyncSettings also reconciles the settings document when Store
	// implements SettingsStore.
	SyncSettings bool
	// Logger defaults to stderr with a "[sync] " prefix.
	Logger *log.Logger
}

// Orchestrator runs sync cycles, strictly one at a time.
type Orchestrator struct {
	remote       Remote
	store        LocalStore
	hashes       *HashStore
	tracker      *Tracker
	threshold    time.Duration
	syncSettings bool
	logger       *log.Logger
	now          func() time.Time

	mu     stdsync.Mutex
	state  State
	window int
	cancel context.CancelFunc
}

// New validates cfg and returns an idle orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Remote == nil {
		return nil, fmt.Errorf("sync: missing remote")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("sync: missing local store")
	}
	if cfg.Hashes == nil {
		return nil, fmt.Errorf("sync: missing hash store")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("sync: missing change tracker")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Orchestrator{
		remote:       cfg.Remote,
		store:        cfg.Store,
		hashes:       cfg.Hashes,
		tracker:      cfg.Tracker,
		threshold:    cfg.ConflictThreshold,
		syncSettings: cfg.SyncSettings,
		logger:       logger,
		now:          time.Now,
		state:        StateIdle,
		window:       cfg.WindowDays,
	}, nil
}

// State returns the orchestrator's current position in the cycle.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Window returns how many days back the next cycle will fetch, zero meaning
// the full history.
func (o *Orchestrator) Window() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.window
}

// Sync runs one full cycle: fetch, merge, resolve, push, persist. It
// returns ErrSyncInFlight when a cycle is already running, and the cycle's
// terminal error otherwise.
func (o *Orchestrator) Sync(ctx context.Context, cb Callbacks) error {
	o.mu.Lock()
	window := o.window
	o.mu.Unlock()
	return o.run(ctx, window, cb)
}

// LoadMore widens the fetch window backward by whole days and runs a full
// cycle over the extended set. The wider window sticks for later cycles. A
// window of zero already covers the full history, so it stays put.
func (o *Orchestrator) LoadMore(ctx context.Context, days int, cb Callbacks) error {
	if days <= 0 {
		return fmt.Errorf("load more: days must be positive, got %d", days)
	}
	o.mu.Lock()
	if o.window > 0 {
		o.window += days
	}
	window := o.window
	o.mu.Unlock()
	return o.run(ctx, window, cb)
}

// Cancel aborts the in-flight cycle, if any. Aborting is clean: nothing has
// been written. Once the push call has been issued the cycle finishes and
// reports normally regardless.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// begin claims the single flight: only an idle orchestrator may start.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return fmt.Errorf("cannot start while %s: %w", o.state, ErrSyncInFlight)
	}
	next, err := transition(o.state, EventStart)
	if err != nil {
		return err
	}
	o.state = next
	return nil
}

// step advances the machine; an illegal move is a bug in the runner.
func (o *Orchestrator) step(e Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := transition(o.state, e)
	if err != nil {
		return err
	}
	o.logger.Printf("state %s -> %s", o.state, next)
	o.state = next
	return nil
}

func aborted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrResolutionAborted)
}

func (o *Orchestrator) run(ctx context.Context, window int, cb Callbacks) error {
	if err := o.begin(); err != nil {
		return err
	}
	cctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
		cancel()
	}()

	res, report, err := o.cycle(cctx, window, cb)
	switch {
	case err == nil:
		if stepErr := o.step(EventPushed); stepErr != nil {
			return stepErr
		}
		if report.Empty() {
			o.logger.Printf("done: %s", res.Summary())
			if cb.OnInSync != nil {
				cb.OnInSync(res)
			}
		} else {
			o.logger.Printf("done: %s, commit %s", res.Summary(), report.Commit)
			if cb.OnSuccess != nil {
				cb.OnSuccess(res, report)
			}
		}
		return o.step(EventDone)
	case aborted(err):
		o.logger.Printf("aborted: %v", err)
		if stepErr := o.step(EventAborted); stepErr != nil {
			return stepErr
		}
		return err
	default:
		if stepErr := o.step(EventFailed); stepErr != nil {
			return stepErr
		}
		o.logger.Printf("failed: %v", err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		if stepErr := o.step(EventDone); stepErr != nil {
			return stepErr
		}
		return err
	}
}

// cycle walks one sync through fetching, merging (with the conflict
// suspension loop) and pushing. It leaves terminal state moves and
// reporting to run.
func (o *Orchestrator) cycle(ctx context.Context, window int, cb Callbacks) (expensebuddy.MergeResult, PushReport, error) {
	var res expensebuddy.MergeResult

	// Fetching: the remote state and the local replica.
	remote, err := o.remote.Fetch(ctx, window)
	if err != nil {
		return res, PushReport{}, fmt.Errorf("fetching remote ledger: %w", err)
	}
	local, err := o.store.GetAll()
	if err != nil {
		return res, PushReport{}, fmt.Errorf("reading local replica: %w", err)
	}
	o.logger.Printf("fetched remote=%d partitions=%d local=%d", len(remote.Records), len(remote.Paths), len(local))

	// Refresh the hash store's view of the remote from what the fetch
	// returned: partitions already matching the merged set must not be
	// pushed again, even by a device with a cold hash store.
	remoteParts, err := expensebuddy.Partitions(remote.Records)
	if err != nil {
		return res, PushReport{}, err
	}
	for path, content := range remoteParts {
		o.hashes.Remember(path, content)
	}
	if remote.Settings != nil {
		var buf bytes.Buffer
		if err := expensebuddy.EncodeSettings(&buf, remote.Settings); err != nil {
			return res, PushReport{}, err
		}
		o.hashes.Remember(expensebuddy.SettingsFile, buf.Bytes())
	}
	if err := o.step(EventFetched); err != nil {
		return res, PushReport{}, err
	}

	// Merging, suspending on true conflicts until resolutions cover them.
	opts := expensebuddy.MergeOptions{ConflictThreshold: o.threshold}
	var resolutions []expensebuddy.Resolution
	for {
		if err := ctx.Err(); err != nil {
			return res, PushReport{}, err
		}
		res = expensebuddy.Merge(local, remote.Records, resolutions, opts)
		if len(res.TrueConflicts) == 0 {
			break
		}
		if err := o.step(EventConflictsFound); err != nil {
			return res, PushReport{}, err
		}
		o.logger.Printf("suspended on %d conflicts", len(res.TrueConflicts))
		if cb.OnConflict == nil {
			return res, PushReport{}, fmt.Errorf("%d conflicts and no resolver: %w", len(res.TrueConflicts), ErrResolutionAborted)
		}
		picked, err := cb.OnConflict(ctx, res.TrueConflicts)
		if err != nil {
			return res, PushReport{}, fmt.Errorf("resolving conflicts: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return res, PushReport{}, err
		}
		resolutions = append(resolutions, picked...)
		if err := o.step(EventResolved); err != nil {
			return res, PushReport{}, err
		}
	}

	var mergedSettings *expensebuddy.Settings
	if o.syncSettings {
		if ss, ok := o.store.(SettingsStore); ok {
			localSettings, err := ss.Settings()
			if err != nil {
				return res, PushReport{}, fmt.Errorf("reading local settings: %w", err)
			}
			mergedSettings = expensebuddy.MergeSettings(localSettings, remote.Settings)
		}
	}

	// Last point where cancellation is honored: from here the cycle runs
	// to a terminal outcome.
	if err := ctx.Err(); err != nil {
		return res, PushReport{}, err
	}
	if err := o.step(EventMerged); err != nil {
		return res, PushReport{}, err
	}

	// Pushing: plan the writes, commit them, then and only then persist
	// the local side.
	plan, err := o.plan(res.Merged, mergedSettings, remote.Paths, window)
	if err != nil {
		return res, PushReport{}, err
	}
	var report PushReport
	if !plan.Empty() {
		result, err := o.remote.Commit(context.WithoutCancel(ctx), plan)
		if err != nil {
			return res, PushReport{}, fmt.Errorf("pushing %d uploads and %d deletions: %w", len(plan.Uploads), len(plan.Deletions), err)
		}
		report = PushReport{Commit: result.Commit, Deleted: plan.Deletions}
		for _, up := range plan.Uploads {
			report.Uploaded = append(report.Uploaded, up.Path)
		}
		o.logger.Printf("committed %s: %d uploads, %d deletions", result.Commit, len(plan.Uploads), len(plan.Deletions))
	}

	// The merged set replaces the replica even when nothing needed
	// pushing: remote-only changes must still land locally.
	if err := o.store.ReplaceAll(res.Merged); err != nil {
		return res, report, fmt.Errorf("persisting merged ledger: %w", err)
	}
	if mergedSettings != nil {
		if err := o.store.(SettingsStore).ReplaceSettings(mergedSettings); err != nil {
			return res, report, fmt.Errorf("persisting merged settings: %w", err)
		}
	}

	// With the commit confirmed and the replica replaced, the hash store
	// learns the new bytes and the pending changes clear. Any earlier
	// failure leaves both untouched, so a retry starts clean.
	if !plan.Empty() {
		for _, up := range plan.Uploads {
			o.hashes.Remember(up.Path, up.Content)
		}
		for _, path := range plan.Deletions {
			o.hashes.Forget(path)
		}
		if err := o.hashes.Save(); err != nil {
			return res, report, err
		}
	}
	if err := o.tracker.Clear(); err != nil {
		return res, report, err
	}
	return res, report, nil
}
