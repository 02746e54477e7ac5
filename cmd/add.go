package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/renderer"
)

type addCmd struct {
	amount   string
	category string
	date     string
	note     string
	payment  string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a new expense" }
func (*addCmd) Usage() string {
	return `xb add -a <amount> -c <category> [-d <date>] [-n <note>] [-p <payment>]

  Records an expense in the local ledger. The date defaults to today and
  accepts an optional time of day. The payment method is free form, like
  "cash" or "card:visa".

Usage Examples:
$ xb add -a 12.30 -c groceries
$ xb add -a 89 -c transport -d 2026-08-20T19:30 -n "train to Lyon" -p card:visa
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "a", "", "Amount of the expense, like 12.30.")
	f.StringVar(&c.category, "c", "", "Category of the expense, like groceries.")
	f.StringVar(&c.date, "d", "", "Day of the expense, today by default.")
	f.StringVar(&c.note, "n", "", "Free form note.")
	f.StringVar(&c.payment, "p", "", "Payment method, like card:visa.")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.amount == "" || c.category == "" {
		fmt.Fprintln(os.Stderr, "Error: -a and -c are required.")
		return subcommands.ExitUsageError
	}
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing amount: %v\n", err)
		return subcommands.ExitUsageError
	}
	date := expensebuddy.Date{Day: expensebuddy.Today()}
	if c.date != "" {
		if date, err = expensebuddy.ParseDate(c.date); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	payment, err := expensebuddy.ParsePaymentMethod(c.payment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing payment method: %v\n", err)
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

	now := expensebuddy.CanonTime(time.Now())
	record := expensebuddy.Record{
		ID:        uuid.NewString(),
		Amount:    amount,
		Category:  c.category,
		Date:      date,
		Note:      c.note,
		Payment:   payment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.ReplaceAll(append(records, record)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	tracker, err := openTracker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := tracker.TrackAdd(record.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("added %s (%s)\n", renderer.RecordLine(record, ledgerCurrency(store)), record.ID)
	return subcommands.ExitSuccess
}
