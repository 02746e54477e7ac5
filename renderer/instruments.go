package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

// InstrumentsMarkdown renders the saved payment instruments.
func InstrumentsMarkdown(instruments []expensebuddy.Instrument) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Payment Instruments (%d)", len(instruments)))

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignLeft,
		},
		Header: []string{"Id", "Method", "Status"},
		Rows:   [][]string{},
	}
	for _, ins := range instruments {
		method := expensebuddy.PaymentMethod{Kind: ins.Kind, Label: ins.Label}
		status := "live"
		if !ins.DeletedAt.IsZero() {
			status = "deleted"
		}
		table.Rows = append(table.Rows, []string{ins.ID, method.String(), status})
	}
	doc.Table(table)

	return doc.String()
}
