package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/renderer"
)

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "Show the replica and what waits for the next sync." }
func (*statusCmd) Usage() string {
	return `xb status

  Shows the remote repository, the sync window, the local record counts
  and the changes recorded since the last successful sync.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {}

func (c *statusCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return subcommands.ExitFailure
	}
	store := openStore(cfg)
	records, err := store.GetAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading the ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	tracker, err := openTracker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the change tracker: %v\n", err)
		return subcommands.ExitFailure
	}

	var live, deleted int
	for _, r := range records {
		if r.Deleted() {
			deleted++
		} else {
			live++
		}
	}

	branch := cfg.Remote.Branch
	if branch == "" {
		branch = "(default)"
	}

	status := renderer.Status{
		Repo:       cfg.Remote.Repo,
		Branch:     branch,
		WindowDays: cfg.Sync.WindowDays,
		Currency:   ledgerCurrency(store),
		Live:       live,
		Deleted:    deleted,
		Partitions: len(expensebuddy.GroupByDay(records)),
		Pending:    tracker.Pending(),
	}
	printMarkdown(renderer.StatusMarkdown(status))
	return subcommands.ExitSuccess
}
