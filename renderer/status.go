package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	"github.com/sudokoi/expense-buddy-sub002/sync"
)

// Status is the data behind the status view, assembled by the caller from
// the configuration, the replica and the change tracker.
type Status struct {
	Repo       string
	Branch     string
	WindowDays int // 0 means full history
	Currency   string
	Live       int // live records in the replica
	Deleted    int // soft-deleted records in the replica
	Partitions int
	Pending    sync.PendingChanges
}

// StatusMarkdown renders the status view.
func StatusMarkdown(s Status) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Ledger Status")

	currency := s.Currency
	if currency == "" {
		currency = "not set"
	}
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
		},
		Header: []string{"Setting", "Value"},
		Rows: [][]string{
			{"Repository", s.Repo},
			{"Branch", s.Branch},
			{"Sync window", windowLabel(s.WindowDays)},
			{"Currency", currency},
			{"Records", fmt.Sprintf("%d live, %d deleted, %d days", s.Live, s.Deleted, s.Partitions)},
		},
	})

	doc.H2(fmt.Sprintf("Pending Changes (%d)", s.Pending.Total()))
	if s.Pending.Total() == 0 {
		doc.PlainText("Nothing waiting for the next sync.")
		return doc.String()
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignRight,
			md.AlignLeft,
		},
		Header: []string{"Change", "Count", "Ids"},
		Rows:   [][]string{},
	}
	appendIDRow(&table, "added", s.Pending.Added)
	appendIDRow(&table, "edited", s.Pending.Edited)
	appendIDRow(&table, "deleted", s.Pending.Deleted)
	doc.Table(table)

	return doc.String()
}

func windowLabel(days int) string {
	if days <= 0 {
		return "full history"
	}
	return fmt.Sprintf("%d days", days)
}
