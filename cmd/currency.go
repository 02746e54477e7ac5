package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

type currencyCmd struct{}

func (*currencyCmd) Name() string     { return "currency" }
func (*currencyCmd) Synopsis() string { return "show or set the ledger currency" }
func (*currencyCmd) Usage() string {
	return `xb currency [<code>]

  Without argument, shows the ledger currency. With an ISO code like EUR,
  sets it. The currency lives in the replicated settings document, so it
  reaches the other devices on the next sync.
`
}

func (*currencyCmd) SetFlags(f *flag.FlagSet) {}

func (c *currencyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store := openStore(cfg)

	if f.NArg() == 0 {
		if cur := ledgerCurrency(store); cur != "" {
			fmt.Println(cur)
		} else {
			fmt.Println("not set")
		}
		return subcommands.ExitSuccess
	}
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: want a single currency code.")
		return subcommands.ExitUsageError
	}

	code := strings.ToUpper(f.Arg(0))
	if money.GetCurrency(code) == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown currency code %q.\n", code)
		return subcommands.ExitUsageError
	}

	settings, err := store.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if settings == nil {
		settings = &expensebuddy.Settings{}
	}
	settings.Currency = code
	settings.UpdatedAt = expensebuddy.CanonTime(time.Now())

	if err := store.ReplaceSettings(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("currency set to %s\n", code)
	return subcommands.ExitSuccess
}
