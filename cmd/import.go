package cmd

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

type importCmd struct {
	category string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "Bulk add records from a CSV export." }
func (*importCmd) Usage() string {
	return `xb import [-c category] <file.csv>

  Adds every row of a CSV export as a new record. The header line maps
  the columns; date and amount are required, category, note and payment
  are optional, anything else is ignored.

  Imported rows are new records with fresh ids: importing the same file
  twice duplicates its expenses.

Usage Examples:
  xb import -c groceries bank-export.csv
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "c", "", "Category for rows that do not carry one.")
}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: want exactly one file to import.")
		return subcommands.ExitUsageError
	}

	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the export: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	imported, err := readExport(file, c.category, expensebuddy.CanonTime(time.Now()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	if len(imported) == 0 {
		fmt.Println("nothing to import.")
		return subcommands.ExitSuccess
	}

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
	if err := store.ReplaceAll(append(records, imported...)); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing the ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	tracker, err := openTracker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the change tracker: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, r := range imported {
		if err := tracker.TrackAdd(r.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error tracking the import: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	fmt.Printf("✅ imported %d records from %s\n", len(imported), f.Arg(0))
	return subcommands.ExitSuccess
}

// readExport parses a header-mapped CSV export into fresh records stamped
// at now.
func readExport(in io.Reader, category string, now time.Time) ([]expensebuddy.Record, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "amount"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("the header has no %q column", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []expensebuddy.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := expensebuddy.ParseDate(field(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		amount, err := decimal.NewFromString(field(row, "amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q", line, field(row, "amount"))
		}
		payment, err := expensebuddy.ParsePaymentMethod(field(row, "payment"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cat := field(row, "category")
		if cat == "" {
			cat = category
		}

		records = append(records, expensebuddy.Record{
			ID:        uuid.NewString(),
			Amount:    amount,
			Category:  cat,
			Date:      date,
			Note:      field(row, "note"),
			Payment:   payment,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
}
