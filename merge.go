package expensebuddy

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// this file contains the merge engine: a pure function that reconciles the
// local and remote record sets into one. No I/O happens here; callers feed
// it plain slices and apply the outcome themselves.
//
// The overall strategy is a union keyed by record id:
//   ids on one side only are kept as-is (added from that side).
//   ids on both sides with identical content are kept untouched.
//   ids on both sides with diverging content are settled by update time:
//     far apart, the newer version wins (the clocks are trusted);
//     close together, neither is trusted and a true conflict is reported,
//     leaving the record out of the merged set until a resolution picks a
//     version.

// DefaultConflictThreshold is the trust window for concurrent edits: two
// versions of the same record whose update times are further apart than
// this are assumed sequential and auto-resolve to the newer one.
const DefaultConflictThreshold = 60 * time.Second

// Winner tells which side an auto-resolved divergence was taken from.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// AutoResolved reports a divergence settled by update times.
type AutoResolved struct {
	ID     string
	Winner Winner
}

// Conflict is a divergence too close in time to trust the clocks: both full
// versions are reported and the record stays out of the merged set until a
// Resolution picks one.
type Conflict struct {
	ID     string
	Local  Record
	Remote Record
}

// Resolution picks the version to keep for a conflicted record id.
// Resolutions for ids that are not in conflict are ignored.
type Resolution struct {
	ID     string
	Chosen Record
}

// MergeOptions tunes the merge.
type MergeOptions struct {
	// ConflictThreshold is the trust window. Zero means
	// DefaultConflictThreshold. A negative value disables true conflicts
	// entirely: every divergence auto-resolves, exact ties going to remote.
	ConflictThreshold time.Duration
}

// MergeResult is the outcome of merging two record sets.
//
// Merged holds the reconciled set, sorted by (day, id), excluding ids that
// are still in true conflict. The classification lists are sorted id lists
// and are mutually exclusive; AutoResolved annotates ids that also appear
// in UpdatedFromLocal or UpdatedFromRemote.
type MergeResult struct {
	Merged []Record

	AddedFromLocal    []string
	AddedFromRemote   []string
	UpdatedFromLocal  []string
	UpdatedFromRemote []string

	AutoResolved  []AutoResolved
	TrueConflicts []Conflict
}

// Unchanged reports whether the merge found both sides already identical.
func (r MergeResult) Unchanged() bool {
	return len(r.AddedFromLocal) == 0 && len(r.AddedFromRemote) == 0 &&
		len(r.UpdatedFromLocal) == 0 && len(r.UpdatedFromRemote) == 0 &&
		len(r.TrueConflicts) == 0
}

// Summary formats the result in one human line, like "+2 local +1 remote ~1 resolved".
func (r MergeResult) Summary() string {
	if r.Unchanged() {
		return "already in sync"
	}
	parts := make([]string, 0, 5)
	if n := len(r.AddedFromLocal); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d local", n))
	}
	if n := len(r.AddedFromRemote); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d remote", n))
	}
	if n := len(r.UpdatedFromLocal) + len(r.UpdatedFromRemote); n > 0 {
		parts = append(parts, fmt.Sprintf("~%d updated", n))
	}
	if n := len(r.TrueConflicts); n > 0 {
		parts = append(parts, fmt.Sprintf("!%d conflicting", n))
	}
	return strings.Join(parts, " ")
}

// SortRecords orders records deterministically by (day, id).
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date.Day != records[j].Date.Day {
			return records[i].Date.Day.Before(records[j].Date.Day)
		}
		return records[i].ID < records[j].ID
	})
}

// indexRecords keys one side by id. Records without an id or an update time
// must never reach the merge: that is a bug upstream, so it fails loudly.
// Duplicated ids within a side collapse to the newest version.
func indexRecords(side string, records []Record) map[string]Record {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		if r.ID == "" {
			panic(fmt.Sprintf("merge: %s record without id (category %q, date %s)", side, r.Category, r.Date))
		}
		if r.UpdatedAt.IsZero() {
			panic(fmt.Sprintf("merge: %s record %q without update time", side, r.ID))
		}
		if prev, ok := byID[r.ID]; ok && r.UpdatedAt.Before(prev.UpdatedAt) {
			continue
		}
		byID[r.ID] = r
	}
	return byID
}

// Merge reconciles the local and remote record sets.
//
// It is pure and deterministic: same inputs, same outcome. Merging a set
// with itself yields the set back with empty classification, and swapping
// the sides yields the same merged set as long as no true conflict arises.
func Merge(local, remote []Record, resolutions []Resolution, opts MergeOptions) MergeResult {
	threshold := opts.ConflictThreshold
	if threshold == 0 {
		threshold = DefaultConflictThreshold
	}

	loc := indexRecords("local", local)
	rem := indexRecords("remote", remote)

	chosen := make(map[string]Record, len(resolutions))
	for _, res := range resolutions {
		chosen[res.ID] = res.Chosen
	}

	var out MergeResult
	merged := make([]Record, 0, len(loc)+len(rem))

	for id, lr := range loc {
		rr, overlap := rem[id]
		if !overlap {
			merged = append(merged, lr)
			out.AddedFromLocal = append(out.AddedFromLocal, id)
			continue
		}
		if lr.Equal(rr) {
			// Same content on both sides: keep it, classify it nowhere.
			merged = append(merged, rr)
			continue
		}

		delta := lr.UpdatedAt.Sub(rr.UpdatedAt)
		if delta < 0 {
			delta = -delta
		}
		if threshold >= 0 && delta <= threshold {
			// Too close to trust the clocks.
			if pick, ok := chosen[id]; ok {
				merged = append(merged, pick)
				if pick.Equal(rr) {
					out.UpdatedFromRemote = append(out.UpdatedFromRemote, id)
				} else {
					out.UpdatedFromLocal = append(out.UpdatedFromLocal, id)
				}
				continue
			}
			out.TrueConflicts = append(out.TrueConflicts, Conflict{ID: id, Local: lr, Remote: rr})
			continue
		}

		// Far enough apart: the newer version wins, remote wins exact ties.
		if rr.UpdatedAt.Before(lr.UpdatedAt) {
			merged = append(merged, lr)
			out.UpdatedFromLocal = append(out.UpdatedFromLocal, id)
			out.AutoResolved = append(out.AutoResolved, AutoResolved{ID: id, Winner: WinnerLocal})
		} else {
			merged = append(merged, rr)
			out.UpdatedFromRemote = append(out.UpdatedFromRemote, id)
			out.AutoResolved = append(out.AutoResolved, AutoResolved{ID: id, Winner: WinnerRemote})
		}
	}

	for id, rr := range rem {
		if _, overlap := loc[id]; overlap {
			continue
		}
		merged = append(merged, rr)
		out.AddedFromRemote = append(out.AddedFromRemote, id)
	}

	SortRecords(merged)
	out.Merged = merged
	slices.Sort(out.AddedFromLocal)
	slices.Sort(out.AddedFromRemote)
	slices.Sort(out.UpdatedFromLocal)
	slices.Sort(out.UpdatedFromRemote)
	slices.SortFunc(out.AutoResolved, func(a, b AutoResolved) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(out.TrueConflicts, func(a, b Conflict) int { return strings.Compare(a.ID, b.ID) })
	return out
}
