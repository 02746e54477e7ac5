package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	stdsync "sync"
)

// Tracker remembers which record ids changed locally since the last
// successful push. It powers the pending-changes display and the commit
// message; sync correctness never depends on it, content comparison does
// the real work.
//
// Every mutation persists immediately: the CLI is short-lived and a change
// tracked only in memory would be lost with the process.
type Tracker struct {
	path string

	mu      stdsync.Mutex
	added   map[string]bool
	edited  map[string]bool
	deleted map[string]bool
}

// PendingChanges is a snapshot of the tracked ids, each list sorted.
type PendingChanges struct {
	Added   []string `json:"added"`
	Edited  []string `json:"edited"`
	Deleted []string `json:"deleted"`
}

// Total counts all pending ids.
func (p PendingChanges) Total() int { return len(p.Added) + len(p.Edited) + len(p.Deleted) }

// OpenTracker loads the tracker persisted at path, starting empty when the
// file does not exist yet.
func OpenTracker(path string) (*Tracker, error) {
	t := &Tracker{
		path:    path,
		added:   make(map[string]bool),
		edited:  make(map[string]bool),
		deleted: make(map[string]bool),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read change tracker %q: %w", path, err)
	}
	var pending PendingChanges
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("cannot parse change tracker %q: %w", path, err)
	}
	for _, id := range pending.Added {
		t.added[id] = true
	}
	for _, id := range pending.Edited {
		t.edited[id] = true
	}
	for _, id := range pending.Deleted {
		t.deleted[id] = true
	}
	return t, nil
}

// TrackAdd marks id as locally created.
func (t *Tracker) TrackAdd(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.added[id] = true
	delete(t.edited, id)
	delete(t.deleted, id)
	return t.save()
}

// TrackEdit marks id as locally modified. An id still pending as added
// stays added: it has never been pushed, so it is still a creation.
func (t *Tracker) TrackEdit(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.added[id] {
		t.edited[id] = true
		delete(t.deleted, id)
	}
	return t.save()
}

// TrackDelete marks id as locally soft-deleted. Deletion supersedes any
// other pending change for the id.
func (t *Tracker) TrackDelete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.added, id)
	delete(t.edited, id)
	t.deleted[id] = true
	return t.save()
}

// Pending returns a snapshot of the tracked ids.
func (t *Tracker) Pending() PendingChanges {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Clear forgets every pending id. Only call it after the push step of a
// cycle reported success; a failed cycle must leave the set untouched.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.added)
	clear(t.edited)
	clear(t.deleted)
	return t.save()
}

func (t *Tracker) snapshot() PendingChanges {
	return PendingChanges{
		Added:   sortedKeys(t.added),
		Edited:  sortedKeys(t.edited),
		Deleted: sortedKeys(t.deleted),
	}
}

func (t *Tracker) save() error {
	data, err := json.MarshalIndent(t.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode change tracker: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("cannot create folder for change tracker %q: %w", t.path, err)
	}
	if err := os.WriteFile(t.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("cannot write change tracker %q: %w", t.path, err)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
