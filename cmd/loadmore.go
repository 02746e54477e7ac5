package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type loadmoreCmd struct {
	days int
}

func (*loadmoreCmd) Name() string     { return "loadmore" }
func (*loadmoreCmd) Synopsis() string { return "Widen the sync window and run a cycle." }
func (*loadmoreCmd) Usage() string {
	return `xb loadmore [-days n]

  Runs one sync cycle over a wider window, pulling older partitions into
  the local replica. The configured window is untouched; the next plain
  sync narrows back to it.

Usage Examples:
  xb loadmore -days 365
`
}

func (c *loadmoreCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 365, "Number of days of history to fetch.")
}

func (c *loadmoreCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if err := o.LoadMore(ctx, c.days, syncCallbacks("", ledgerCurrency(store))); err != nil {
		return reportSyncError(err)
	}
	return subcommands.ExitSuccess
}
