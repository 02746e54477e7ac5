package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

// RecordsMarkdown renders records as a table with a total line. Soft-deleted
// records are marked in the note column and left out of the total.
func RecordsMarkdown(records []expensebuddy.Record, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Expenses (%d)", len(records)))

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignRight,
			md.AlignLeft,
			md.AlignLeft,
		},
		Header: []string{"Date", "Category", "Amount", "Payment", "Note"},
		Rows:   [][]string{},
	}
	total := decimal.Zero
	for _, r := range records {
		note := r.Note
		if r.Deleted() {
			if note != "" {
				note += " "
			}
			note += "(deleted)"
		} else {
			total = total.Add(r.Amount)
		}
		table.Rows = append(table.Rows, []string{
			r.Date.String(),
			r.Category,
			FormatAmount(r.Amount, currency),
			r.Payment.String(),
			note,
		})
	}
	doc.Table(table)

	doc.PlainText(fmt.Sprintf("%s: %s", md.Bold("Total"), FormatAmount(total, currency)))
	return doc.String()
}

// RecordLine renders a record as a single line, for prompts and summaries.
func RecordLine(r expensebuddy.Record, currency string) string {
	line := fmt.Sprintf("%s %s %s", r.Date, FormatAmount(r.Amount, currency), r.Category)
	if !r.Payment.IsZero() {
		line += " by " + r.Payment.String()
	}
	if r.Note != "" {
		line += fmt.Sprintf(" (%s)", r.Note)
	}
	if r.Deleted() {
		line += " [deleted]"
	}
	return line
}
