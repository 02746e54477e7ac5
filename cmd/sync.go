package cmd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/github"
	"github.com/sudokoi/expense-buddy-sub002/renderer"
	"github.com/sudokoi/expense-buddy-sub002/sync"
)

type syncCmd struct {
	prefer string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "Reconcile the ledger with the remote repository." }
func (*syncCmd) Usage() string {
	return `xb sync [-prefer local|remote|newer]

  Fetches the partitions inside the sync window, merges them with the
  local replica and pushes the changed files back in one commit.

  Records edited on both devices within the trust window stop the cycle
  for a decision. By default the command asks for each one; -prefer
  settles them all without asking.

Usage Examples:
  xb sync
  xb sync -prefer newer
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.prefer, "prefer", "", "Settle conflicts without asking: local, remote or newer.")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	switch c.prefer {
	case "", "local", "remote", "newer":
	default:
		fmt.Fprintf(os.Stderr, "Error: -prefer must be local, remote or newer, not %q\n", c.prefer)
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return subcommands.ExitFailure
	}
	o, err := openOrchestrator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store := openStore(cfg)

	if err := o.Sync(ctx, syncCallbacks(c.prefer, ledgerCurrency(store))); err != nil {
		return reportSyncError(err)
	}
	return subcommands.ExitSuccess
}

// syncCallbacks builds the callback set shared by sync and loadmore.
func syncCallbacks(prefer, currency string) sync.Callbacks {
	return sync.Callbacks{
		OnConflict: conflictResolver(prefer, currency),
		OnSuccess: func(res expensebuddy.MergeResult, push sync.PushReport) {
			printMarkdown(renderer.SyncReportMarkdown(res, push))
		},
		OnInSync: func(res expensebuddy.MergeResult) {
			printMarkdown(renderer.SyncReportMarkdown(res, sync.PushReport{}))
		},
	}
}

func reportSyncError(err error) subcommands.ExitStatus {
	switch {
	case errors.Is(err, sync.ErrResolutionAborted), errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "sync aborted, nothing was written")
	case errors.Is(err, github.ErrBranchMoved):
		fmt.Fprintln(os.Stderr, "the branch moved during the cycle; run sync again to merge on the new tip.")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}

func conflictResolver(prefer, currency string) func(context.Context, []expensebuddy.Conflict) ([]expensebuddy.Resolution, error) {
	return func(ctx context.Context, conflicts []expensebuddy.Conflict) ([]expensebuddy.Resolution, error) {
		if prefer != "" {
			return resolveAll(conflicts, prefer), nil
		}
		return promptResolutions(ctx, conflicts, currency)
	}
}

// resolveAll settles every conflict on the same side without asking.
func resolveAll(conflicts []expensebuddy.Conflict, prefer string) []expensebuddy.Resolution {
	resolutions := make([]expensebuddy.Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		chosen := c.Local
		switch prefer {
		case "remote":
			chosen = c.Remote
		case "newer":
			// remote wins exact ties, like the merge itself
			if !c.Remote.UpdatedAt.Before(c.Local.UpdatedAt) {
				chosen = c.Remote
			}
		}
		resolutions = append(resolutions, expensebuddy.Resolution{ID: c.ID, Chosen: chosen})
	}
	return resolutions
}

// promptResolutions asks on stdin for each conflict in turn.
func promptResolutions(ctx context.Context, conflicts []expensebuddy.Conflict, currency string) ([]expensebuddy.Resolution, error) {
	printMarkdown(renderer.ConflictsMarkdown(conflicts, currency))

	in := bufio.NewReader(os.Stdin)
	resolutions := make([]expensebuddy.Resolution, 0, len(conflicts))
	for i, c := range conflicts {
		fmt.Printf("\n%d of %d: %s\n", i+1, len(conflicts), c.ID)
		fmt.Printf("  local:  %s\n", renderer.RecordLine(c.Local, currency))
		fmt.Printf("  remote: %s\n", renderer.RecordLine(c.Remote, currency))
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fmt.Print("keep [l]ocal, [r]emote, or [a]bort? ")
			line, err := in.ReadString('\n')
			if err != nil {
				return nil, fmt.Errorf("reading answer: %w", err)
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "l", "local":
				resolutions = append(resolutions, expensebuddy.Resolution{ID: c.ID, Chosen: c.Local})
			case "r", "remote":
				resolutions = append(resolutions, expensebuddy.Resolution{ID: c.ID, Chosen: c.Remote})
			case "a", "abort":
				return nil, sync.ErrResolutionAborted
			default:
				continue
			}
			break
		}
	}
	return resolutions, nil
}
