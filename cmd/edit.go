package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/renderer"
)

type editCmd struct {
	amount   string
	category string
	date     string
	note     string
	payment  string
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change an expense" }
func (*editCmd) Usage() string {
	return `xb edit <id> [-a <amount>] [-c <category>] [-d <date>] [-n <note>] [-p <payment>]

  Changes the given fields of an expense and bumps its update time; the
  other fields stay as they are. The id may be a unique prefix. Passing
  "-" to -n or -p clears the field.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "a", "", "New amount.")
	f.StringVar(&c.category, "c", "", "New category.")
	f.StringVar(&c.date, "d", "", "New date.")
	f.StringVar(&c.note, "n", "", "New note, \"-\" to clear.")
	f.StringVar(&c.payment, "p", "", "New payment method, \"-\" to clear.")
}

func (c *editCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: want exactly one record id.")
		return subcommands.ExitUsageError
	}
	if c.amount == "" && c.category == "" && c.date == "" && c.note == "" && c.payment == "" {
		fmt.Fprintln(os.Stderr, "Error: nothing to change.")
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
	record := records[i]
	if record.Deleted() {
		fmt.Fprintf(os.Stderr, "Error: record %s is deleted.\n", record.ID)
		return subcommands.ExitFailure
	}

	if c.amount != "" {
		if record.Amount, err = decimal.NewFromString(c.amount); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing amount: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	if c.category != "" {
		record.Category = c.category
	}
	if c.date != "" {
		if record.Date, err = expensebuddy.ParseDate(c.date); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	if c.note != "" {
		record.Note = c.note
		if c.note == "-" {
			record.Note = ""
		}
	}
	if c.payment != "" {
		str := c.payment
		if str == "-" {
			str = ""
		}
		if record.Payment, err = expensebuddy.ParsePaymentMethod(str); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing payment method: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	record.UpdatedAt = expensebuddy.CanonTime(time.Now())
	records[i] = record

	if err := store.ReplaceAll(records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	tracker, err := openTracker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := tracker.TrackEdit(record.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("edited %s (%s)\n", renderer.RecordLine(record, ledgerCurrency(store)), record.ID)
	return subcommands.ExitSuccess
}
