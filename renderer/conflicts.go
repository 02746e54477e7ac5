package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
)

// ConflictsMarkdown renders each conflict as a side by side field
// comparison, differing fields in bold.
func ConflictsMarkdown(conflicts []expensebuddy.Conflict, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Conflicts (%d)", len(conflicts)))
	doc.PlainText("Both devices changed these records within the trust window, so neither clock can settle them. Pick a side for each.")

	for i, c := range conflicts {
		doc.H2(fmt.Sprintf("%d of %d: %s", i+1, len(conflicts), c.ID))
		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{
				md.AlignLeft,
				md.AlignLeft,
				md.AlignLeft,
			},
			Header: []string{"Field", "Local", "Remote"},
			Rows:   conflictRows(c, currency),
		})
	}
	return doc.String()
}

func conflictRows(c expensebuddy.Conflict, currency string) [][]string {
	l, r := c.Local, c.Remote
	rows := [][]string{
		conflictRow("Amount", FormatAmount(l.Amount, currency), FormatAmount(r.Amount, currency)),
		conflictRow("Category", l.Category, r.Category),
		conflictRow("Date", l.Date.String(), r.Date.String()),
		conflictRow("Note", l.Note, r.Note),
		conflictRow("Payment", l.Payment.String(), r.Payment.String()),
		conflictRow("Deleted", yesNo(l.Deleted()), yesNo(r.Deleted())),
		conflictRow("Updated",
			expensebuddy.CanonTime(l.UpdatedAt).Format(expensebuddy.TimeFormat),
			expensebuddy.CanonTime(r.UpdatedAt).Format(expensebuddy.TimeFormat)),
	}
	return rows
}

// conflictRow bolds the sides that differ, leaving empty cells plain so the
// table does not fill up with bare asterisks.
func conflictRow(field, local, remote string) []string {
	if local != remote {
		if local != "" {
			local = md.Bold(local)
		}
		if remote != "" {
			remote = md.Bold(remote)
		}
	}
	return []string{field, local, remote}
}
