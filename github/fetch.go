package github

// This file contains the read side: listing the partition directory and
// downloading the windowed partitions plus the settings document.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/sync"
)

// contentsEntry is one row of the contents-listing API.
//
// GET /repos/{owner}/{repo}/contents/records?ref=main
// [
//   {
//     "name": "2026-08-20.csv",
//     "path": "records/2026-08-20.csv",
//     "sha": "3d21ec52...",
//     "size": 412,
//     "type": "file"
//   },
//   ...
// ]
type contentsEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// Fetch implements sync.Remote. Paths lists every partition present on the
// branch; record content is only downloaded for days inside the window, or
// for all of them when sinceDays is zero or negative.
func (c *Client) Fetch(ctx context.Context, sinceDays int) (*sync.RemoteState, error) {
	branch, err := c.resolvedBranch(ctx)
	if err != nil {
		return nil, err
	}

	state := &sync.RemoteState{}

	var listing []contentsEntry
	err = c.do(ctx, http.MethodGet, c.url("contents", expensebuddy.PartitionDir)+refQuery(branch), "", nil, &listing)
	switch {
	case errors.Is(err, errNotFound):
		// empty repository, or nothing was ever pushed: both mean an
		// empty remote ledger, not a failure
		listing = nil
	case err != nil:
		return nil, fmt.Errorf("cannot list %s: %w", expensebuddy.PartitionDir, err)
	}

	var start expensebuddy.Day
	if sinceDays > 0 {
		start = expensebuddy.WindowStart(expensebuddy.DayOf(c.now()), sinceDays)
	}

	for _, entry := range listing {
		if entry.Type != "file" {
			continue
		}
		day, err := expensebuddy.ParsePartitionName(entry.Name)
		if err != nil {
			// foreign file in the partition directory: not ours to read
			continue
		}
		state.Paths = append(state.Paths, entry.Path)
		if sinceDays > 0 && day.Before(start) {
			continue
		}
		var raw []byte
		if err := c.do(ctx, http.MethodGet, c.url("contents", entry.Path)+refQuery(branch), "application/vnd.github.raw", nil, &raw); err != nil {
			return nil, fmt.Errorf("cannot fetch partition %s: %w", entry.Path, err)
		}
		records, err := expensebuddy.DecodeRecords(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("remote partition %s: %w", entry.Path, err)
		}
		state.Records = append(state.Records, records...)
	}
	slices.Sort(state.Paths)

	var raw []byte
	err = c.do(ctx, http.MethodGet, c.url("contents", expensebuddy.SettingsFile)+refQuery(branch), "application/vnd.github.raw", nil, &raw)
	switch {
	case errors.Is(err, errNotFound):
	case err != nil:
		return nil, fmt.Errorf("cannot fetch %s: %w", expensebuddy.SettingsFile, err)
	default:
		settings, err := expensebuddy.DecodeSettings(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("remote %s: %w", expensebuddy.SettingsFile, err)
		}
		state.Settings = settings
	}

	c.logger.Printf("fetched window=%dd records=%d partitions=%d", sinceDays, len(state.Records), len(state.Paths))
	return state, nil
}
