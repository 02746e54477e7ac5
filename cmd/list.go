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

type listCmd struct {
	start    string
	end      string
	category string
	all      bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list expenses" }
func (*listCmd) Usage() string {
	return `xb list [-s <start_day>] [-d <end_day>] [-c <category>] [-all]

  Lists expenses as a table with a total, the whole ledger by default.
  Deleted records only show up with -all.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "s", "", "First day to list.")
	f.StringVar(&c.end, "d", "", "Last day to list.")
	f.StringVar(&c.category, "c", "", "Only this category.")
	f.BoolVar(&c.all, "all", false, "Include deleted records.")
}

func (c *listCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var start, end expensebuddy.Day
	var err error
	if c.start != "" {
		if start, err = expensebuddy.ParseDay(c.start); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing start day: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	if c.end != "" {
		if end, err = expensebuddy.ParseDay(c.end); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing end day: %v\n", err)
			return subcommands.ExitUsageError
		}
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

	var listed []expensebuddy.Record
	for _, r := range records {
		if r.Deleted() && !c.all {
			continue
		}
		if c.category != "" && r.Category != c.category {
			continue
		}
		if !start.IsZero() && r.Date.Day.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.Day.After(end) {
			continue
		}
		listed = append(listed, r)
	}
	expensebuddy.SortRecords(listed)

	printMarkdown(renderer.RecordsMarkdown(listed, ledgerCurrency(store)))
	return subcommands.ExitSuccess
}
