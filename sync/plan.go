package sync

// this file contains the push planner: deciding which remote files one
// cycle writes or deletes so the remote matches the merged set. Content
// hashes decide uploads; merge classification never does.

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

func (o *Orchestrator) plan(merged []expensebuddy.Record, settings *expensebuddy.Settings, remotePaths []string, window int) (CommitPlan, error) {
	return buildPlan(o.hashes, merged, settings, remotePaths, window, expensebuddy.DayOf(o.now()))
}

// buildPlan compares the merged set against the remote paths and the hash
// store. Partitions outside the fetch window were not merged, so the plan
// leaves them strictly alone except for one safe case: a merged day whose
// partition does not exist remotely and was never seen before can be
// backfilled without clobbering anything. A known partition now missing
// remotely was deleted there, and re-uploading it would resurrect it.
func buildPlan(hashes *HashStore, merged []expensebuddy.Record, settings *expensebuddy.Settings, remotePaths []string, window int, today expensebuddy.Day) (CommitPlan, error) {
	parts, err := expensebuddy.Partitions(merged)
	if err != nil {
		return CommitPlan{}, err
	}

	inWindow := func(day expensebuddy.Day) bool {
		if window <= 0 {
			return true
		}
		return !day.Before(expensebuddy.WindowStart(today, window))
	}

	remoteHas := make(map[string]bool, len(remotePaths))
	for _, path := range remotePaths {
		remoteHas[path] = true
	}

	var plan CommitPlan
	paths := make([]string, 0, len(parts))
	for path := range parts {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	for _, path := range paths {
		day, err := expensebuddy.ParsePartitionPath(path)
		if err != nil {
			return CommitPlan{}, err
		}
		if !inWindow(day) && (remoteHas[path] || hashes.Known(path)) {
			continue
		}
		if hashes.ShouldUpload(path, parts[path]) {
			plan.Uploads = append(plan.Uploads, FileUpload{Path: path, Content: parts[path]})
		}
	}

	// Remote partitions that were fetched and no longer hold any record
	// are deleted. Files under the partition directory that do not parse
	// as partitions are not ours to manage.
	deletable := slices.Clone(remotePaths)
	slices.Sort(deletable)
	for _, path := range deletable {
		day, err := expensebuddy.ParsePartitionPath(path)
		if err != nil {
			continue
		}
		if !inWindow(day) {
			continue
		}
		if _, ok := parts[path]; !ok {
			plan.Deletions = append(plan.Deletions, path)
		}
	}

	if settings != nil {
		var buf bytes.Buffer
		if err := expensebuddy.EncodeSettings(&buf, settings); err != nil {
			return CommitPlan{}, err
		}
		if hashes.ShouldUpload(expensebuddy.SettingsFile, buf.Bytes()) {
			plan.Uploads = append(plan.Uploads, FileUpload{Path: expensebuddy.SettingsFile, Content: buf.Bytes()})
		}
	}

	plan.Message = commitMessage(plan)
	return plan, nil
}

func commitMessage(plan CommitPlan) string {
	if plan.Empty() {
		return ""
	}
	var parts []string
	if n := len(plan.Uploads); n == 1 {
		parts = append(parts, "1 file updated")
	} else if n > 1 {
		parts = append(parts, fmt.Sprintf("%d files updated", n))
	}
	if n := len(plan.Deletions); n == 1 {
		parts = append(parts, "1 deleted")
	} else if n > 1 {
		parts = append(parts, fmt.Sprintf("%d deleted", n))
	}
	return "sync: " + strings.Join(parts, ", ")
}
