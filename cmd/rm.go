package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/renderer"
)

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete an expense" }
func (*rmCmd) Usage() string {
	return `xb rm <id>

  Deletes an expense. The record is kept with a deletion mark so the
  deletion reaches the other devices on the next sync; it disappears from
  listings and totals. The id may be a unique prefix.
`
}

func (*rmCmd) SetFlags(f *flag.FlagSet) {}

func (c *rmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: want exactly one record id.")
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store := openStore(cfg)
	records, err := store.GetAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	i, err := findRecord(records, f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if records[i].Deleted() {
		fmt.Fprintf(os.Stderr, "Error: record %s is already deleted.\n", records[i].ID)
		return subcommands.ExitFailure
	}

	now := expensebuddy.CanonTime(time.Now())
	records[i].DeletedAt = now
	records[i].UpdatedAt = now

	if err := store.ReplaceAll(records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	tracker, err := openTracker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := tracker.TrackDelete(records[i].ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("deleted %s\n", renderer.RecordLine(records[i], ledgerCurrency(store)))
	return subcommands.ExitSuccess
}
