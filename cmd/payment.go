package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/renderer"
)

type paymentCmd struct {
	add string
	rm  string
}

func (*paymentCmd) Name() string     { return "payment" }
func (*paymentCmd) Synopsis() string { return "manage saved payment instruments" }
func (*paymentCmd) Usage() string {
	return `xb payment [-add <kind[:label]>] [-rm <id>]

  Without flags, lists the saved payment instruments. Instruments live in
  the replicated settings document, so they reach the other devices on
  the next sync.

Usage Examples:
$ xb payment -add card:visa
$ xb payment -rm 5b3e
`
}

func (c *paymentCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.add, "add", "", "Save an instrument, like card:visa.")
	f.StringVar(&c.rm, "rm", "", "Delete the instrument with this id (or unique id prefix).")
}

func (c *paymentCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.add != "" && c.rm != "" {
		fmt.Fprintln(os.Stderr, "Error: -add and -rm cannot be used together.")
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store := openStore(cfg)
	settings, err := store.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.add == "" && c.rm == "" {
		if settings == nil {
			fmt.Println("no payment instruments saved")
			return subcommands.ExitSuccess
		}
		printMarkdown(renderer.InstrumentsMarkdown(settings.Instruments))
		return subcommands.ExitSuccess
	}

	if settings == nil {
		settings = &expensebuddy.Settings{}
	}
	now := expensebuddy.CanonTime(time.Now())

	if c.add != "" {
		method, err := expensebuddy.ParsePaymentMethod(c.add)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		instrument := expensebuddy.Instrument{
			ID:        uuid.NewString(),
			Kind:      method.Kind,
			Label:     method.Label,
			UpdatedAt: now,
		}
		settings.Instruments = append(settings.Instruments, instrument)
		if err := store.ReplaceSettings(settings); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("saved %s (%s)\n", method, instrument.ID)
		return subcommands.ExitSuccess
	}

	i, err := findInstrument(settings.Instruments, c.rm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	settings.Instruments[i].DeletedAt = now
	settings.Instruments[i].UpdatedAt = now
	if err := store.ReplaceSettings(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("deleted instrument %s\n", settings.Instruments[i].ID)
	return subcommands.ExitSuccess
}

// findInstrument returns the index of the live instrument whose id matches
// exactly or by unique prefix.
func findInstrument(instruments []expensebuddy.Instrument, id string) (int, error) {
	match := -1
	for i, ins := range instruments {
		if !ins.DeletedAt.IsZero() {
			continue
		}
		if ins.ID == id {
			return i, nil
		}
		if strings.HasPrefix(ins.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("id %q is ambiguous", id)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("no payment instrument with id %q", id)
	}
	return match, nil
}
