package expensebuddy

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// testRecord builds a minimal valid record for merge tests.
func testRecord(id string, amount string, updated time.Time) Record {
	return Record{
		ID:        id,
		Amount:    decimal.RequireFromString(amount),
		Category:  "food",
		Date:      MustParseDate("2026-08-20"),
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

var mergeEpoch = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestMergeClassification(t *testing.T) {
	local := []Record{
		testRecord("a", "10", mergeEpoch),
		testRecord("b", "20", mergeEpoch),
	}
	remote := []Record{
		testRecord("b", "20", mergeEpoch), // identical on both sides
		testRecord("c", "30", mergeEpoch),
	}

	res := Merge(local, remote, nil, MergeOptions{})

	if got, want := res.AddedFromLocal, []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddedFromLocal = %v, want %v", got, want)
	}
	if got, want := res.AddedFromRemote, []string{"c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddedFromRemote = %v, want %v", got, want)
	}
	if len(res.UpdatedFromLocal)+len(res.UpdatedFromRemote)+len(res.AutoResolved)+len(res.TrueConflicts) != 0 {
		t.Errorf("identical overlap must not be classified, got %+v", res)
	}
	if got, want := ids(res.Merged), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Merged ids = %v, want %v", got, want)
	}
}

func TestMergeWinnerSelection(t *testing.T) {
	testCases := []struct {
		name       string
		localAge   time.Duration // local.UpdatedAt = epoch + localAge
		remoteAge  time.Duration
		threshold  time.Duration
		wantWinner Winner
		wantAmount string
	}{
		{"local newer beyond threshold", 10 * time.Minute, 0, time.Minute, WinnerLocal, "11"},
		{"remote newer beyond threshold", 0, 10 * time.Minute, time.Minute, WinnerRemote, "22"},
		{"exact tie with conflicts disabled", 0, 0, -1, WinnerRemote, "22"},
		{"inside window with conflicts disabled", 0, time.Second, -1, WinnerRemote, "22"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			local := []Record{testRecord("x", "11", mergeEpoch.Add(tc.localAge))}
			remote := []Record{testRecord("x", "22", mergeEpoch.Add(tc.remoteAge))}

			res := Merge(local, remote, nil, MergeOptions{ConflictThreshold: tc.threshold})

			if len(res.TrueConflicts) != 0 {
				t.Fatalf("unexpected conflicts: %+v", res.TrueConflicts)
			}
			if len(res.AutoResolved) != 1 || res.AutoResolved[0].Winner != tc.wantWinner {
				t.Fatalf("AutoResolved = %+v, want winner %s", res.AutoResolved, tc.wantWinner)
			}
			if len(res.Merged) != 1 || res.Merged[0].Amount.String() != tc.wantAmount {
				t.Fatalf("Merged = %+v, want single record with amount %s", res.Merged, tc.wantAmount)
			}
		})
	}
}

func TestMergeTrueConflict(t *testing.T) {
	// Both sides edited within the trust window: nobody wins.
	local := []Record{testRecord("x", "11", mergeEpoch)}
	remote := []Record{testRecord("x", "22", mergeEpoch.Add(5*time.Second))}

	res := Merge(local, remote, nil, MergeOptions{ConflictThreshold: time.Minute})

	if len(res.Merged) != 0 {
		t.Errorf("conflicted id must stay out of Merged, got %v", ids(res.Merged))
	}
	if len(res.AutoResolved) != 0 {
		t.Errorf("conflicted id must not be auto-resolved, got %+v", res.AutoResolved)
	}
	if len(res.TrueConflicts) != 1 {
		t.Fatalf("TrueConflicts = %+v, want exactly one", res.TrueConflicts)
	}
	c := res.TrueConflicts[0]
	if c.ID != "x" || c.Local.Amount.String() != "11" || c.Remote.Amount.String() != "22" {
		t.Errorf("conflict must carry both full versions, got %+v", c)
	}
}

func TestMergeThresholdBoundary(t *testing.T) {
	// Delta exactly equal to the threshold is still inside the window.
	local := []Record{testRecord("x", "11", mergeEpoch)}
	remote := []Record{testRecord("x", "22", mergeEpoch.Add(time.Minute))}

	res := Merge(local, remote, nil, MergeOptions{ConflictThreshold: time.Minute})
	if len(res.TrueConflicts) != 1 {
		t.Fatalf("delta == threshold must conflict, got %+v", res)
	}

	// One millisecond beyond the window auto-resolves.
	remote[0].UpdatedAt = mergeEpoch.Add(time.Minute + time.Millisecond)
	res = Merge(local, remote, nil, MergeOptions{ConflictThreshold: time.Minute})
	if len(res.TrueConflicts) != 0 || len(res.AutoResolved) != 1 {
		t.Fatalf("delta > threshold must auto-resolve, got %+v", res)
	}
}

func TestMergeResolutions(t *testing.T) {
	local := []Record{testRecord("x", "11", mergeEpoch)}
	remote := []Record{testRecord("x", "22", mergeEpoch.Add(5*time.Second))}
	opts := MergeOptions{ConflictThreshold: time.Minute}

	first := Merge(local, remote, nil, opts)
	if len(first.TrueConflicts) != 1 {
		t.Fatalf("setup: want one conflict, got %+v", first)
	}

	keep := first.TrueConflicts[0].Remote
	second := Merge(local, remote, []Resolution{{ID: "x", Chosen: keep}}, opts)

	if len(second.TrueConflicts) != 0 {
		t.Errorf("resolved id must leave TrueConflicts, got %+v", second.TrueConflicts)
	}
	if len(second.Merged) != 1 || !second.Merged[0].Equal(keep) {
		t.Errorf("Merged = %+v, want the chosen version", second.Merged)
	}
	if got, want := second.UpdatedFromRemote, []string{"x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("UpdatedFromRemote = %v, want %v", got, want)
	}

	// A resolution for an id that is not conflicted is ignored.
	stray := Merge(local, local, []Resolution{{ID: "x", Chosen: keep}}, opts)
	if !stray.Unchanged() || len(stray.Merged) != 1 || stray.Merged[0].Amount.String() != "11" {
		t.Errorf("stray resolution must be ignored, got %+v", stray)
	}
}

func TestMergeIdempotent(t *testing.T) {
	set := []Record{
		testRecord("a", "10", mergeEpoch),
		testRecord("b", "20", mergeEpoch.Add(time.Hour)),
	}
	res := Merge(set, set, nil, MergeOptions{})
	if !res.Unchanged() {
		t.Errorf("merging a set with itself must be a no-op, got %+v", res)
	}
	if len(res.Merged) != len(set) {
		t.Errorf("Merged = %v, want all %d records", ids(res.Merged), len(set))
	}
}

func TestMergeCommutative(t *testing.T) {
	a := []Record{
		testRecord("a", "10", mergeEpoch),
		testRecord("x", "11", mergeEpoch), // older version
	}
	b := []Record{
		testRecord("b", "20", mergeEpoch),
		testRecord("x", "22", mergeEpoch.Add(10*time.Minute)), // newer version
	}

	ab := Merge(a, b, nil, MergeOptions{})
	ba := Merge(b, a, nil, MergeOptions{})

	if len(ab.Merged) != len(ba.Merged) {
		t.Fatalf("merged sizes differ: %d vs %d", len(ab.Merged), len(ba.Merged))
	}
	for i := range ab.Merged {
		if !ab.Merged[i].Equal(ba.Merged[i]) {
			t.Errorf("record %d differs: %+v vs %+v", i, ab.Merged[i], ba.Merged[i])
		}
	}
}

func TestMergeNoDoubleCount(t *testing.T) {
	local := []Record{
		testRecord("a", "10", mergeEpoch),
		testRecord("x", "11", mergeEpoch),
		testRecord("y", "1", mergeEpoch),
	}
	remote := []Record{
		testRecord("b", "20", mergeEpoch),
		testRecord("x", "22", mergeEpoch.Add(10*time.Minute)),
		testRecord("y", "2", mergeEpoch.Add(time.Second)),
	}

	res := Merge(local, remote, nil, MergeOptions{ConflictThreshold: time.Minute})

	seen := map[string]int{}
	for _, list := range [][]string{res.AddedFromLocal, res.AddedFromRemote, res.UpdatedFromLocal, res.UpdatedFromRemote} {
		for _, id := range list {
			seen[id]++
		}
	}
	for _, c := range res.TrueConflicts {
		seen[c.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %q classified %d times", id, n)
		}
	}
	// Every classified id is accounted for, and only those.
	if len(seen) != 4 {
		t.Errorf("classified ids = %v, want a, b, x, y", seen)
	}
}

func TestMergeEmptySides(t *testing.T) {
	set := []Record{testRecord("a", "10", mergeEpoch)}

	res := Merge(nil, set, nil, MergeOptions{})
	if got, want := res.AddedFromRemote, []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("empty local: AddedFromRemote = %v, want %v", got, want)
	}

	res = Merge(set, nil, nil, MergeOptions{})
	if got, want := res.AddedFromLocal, []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("empty remote: AddedFromLocal = %v, want %v", got, want)
	}

	res = Merge(nil, nil, nil, MergeOptions{})
	if len(res.Merged) != 0 || !res.Unchanged() {
		t.Errorf("empty merge = %+v, want empty result", res)
	}
}

func TestMergeSoftDelete(t *testing.T) {
	live := testRecord("x", "10", mergeEpoch)
	dead := live
	dead.UpdatedAt = mergeEpoch.Add(10 * time.Minute)
	dead.DeletedAt = dead.UpdatedAt

	// A deletion far from the last edit propagates like any newer edit.
	res := Merge([]Record{live}, []Record{dead}, nil, MergeOptions{ConflictThreshold: time.Minute})
	if len(res.Merged) != 1 || !res.Merged[0].Deleted() {
		t.Fatalf("deletion must win and stay in the set, got %+v", res.Merged)
	}

	// A deletion and an edit within the window is a true conflict.
	edited := live
	edited.Note = "actually taxi"
	edited.UpdatedAt = mergeEpoch.Add(10*time.Minute + 5*time.Second)
	res = Merge([]Record{edited}, []Record{dead}, nil, MergeOptions{ConflictThreshold: time.Minute})
	if len(res.TrueConflicts) != 1 {
		t.Fatalf("deletion vs edit inside window must conflict, got %+v", res)
	}
}

func TestMergePanicsOnMalformedRecord(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("merge must panic on a record without id")
		}
	}()
	Merge([]Record{{Amount: decimal.New(1, 0), UpdatedAt: mergeEpoch}}, nil, nil, MergeOptions{})
}

// TestMergeTwoDeviceScenario replays the first reference scenario: device A
// adds X while device B adds Y and edits Z far beyond the trust window.
func TestMergeTwoDeviceScenario(t *testing.T) {
	zOld := testRecord("z", "5", mergeEpoch)
	zNew := zOld
	zNew.Amount = decimal.RequireFromString("7")
	zNew.UpdatedAt = mergeEpoch.Add(30 * time.Minute)

	local := []Record{testRecord("x", "10", mergeEpoch), zOld}
	remote := []Record{testRecord("y", "20", mergeEpoch), zNew}

	res := Merge(local, remote, nil, MergeOptions{ConflictThreshold: time.Minute})

	if got, want := res.AddedFromLocal, []string{"x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddedFromLocal = %v, want %v", got, want)
	}
	if got, want := res.AddedFromRemote, []string{"y"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddedFromRemote = %v, want %v", got, want)
	}
	if got, want := res.UpdatedFromRemote, []string{"z"}; !reflect.DeepEqual(got, want) {
		t.Errorf("UpdatedFromRemote = %v, want %v", got, want)
	}
	if len(res.AutoResolved) != 1 || res.AutoResolved[0].Winner != WinnerRemote {
		t.Errorf("AutoResolved = %+v, want z auto-resolved to remote", res.AutoResolved)
	}
	if got, want := ids(res.Merged), []string{"x", "y", "z"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Merged ids = %v, want %v", got, want)
	}
}

// TestMergeCloseEditScenario replays the second reference scenario: the same
// record edited on both devices five seconds apart with a one minute window.
func TestMergeCloseEditScenario(t *testing.T) {
	local := []Record{testRecord("x", "11", mergeEpoch)}
	remote := []Record{testRecord("x", "22", mergeEpoch.Add(5*time.Second))}
	opts := MergeOptions{ConflictThreshold: time.Minute}

	res := Merge(local, remote, nil, opts)
	if len(res.TrueConflicts) != 1 || len(res.Merged) != 0 {
		t.Fatalf("want one suspended conflict, got %+v", res)
	}

	// The user picks the local version; the re-run fully resolves.
	pick := res.TrueConflicts[0].Local
	res = Merge(local, remote, []Resolution{{ID: "x", Chosen: pick}}, opts)
	if len(res.TrueConflicts) != 0 {
		t.Fatalf("conflict must be gone after resolution, got %+v", res.TrueConflicts)
	}
	if len(res.Merged) != 1 || res.Merged[0].Amount.String() != "11" {
		t.Errorf("Merged = %+v, want the local version", res.Merged)
	}
	if got, want := res.UpdatedFromLocal, []string{"x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("UpdatedFromLocal = %v, want %v", got, want)
	}
}
