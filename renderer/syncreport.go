package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	expensebuddy "github.com/sudokoi/expense-buddy-sub002"
	"github.com/sudokoi/expense-buddy-sub002/sync"
)

// SyncReportMarkdown renders the outcome of a sync cycle: what the merge
// decided and what the push wrote.
func SyncReportMarkdown(res expensebuddy.MergeResult, push sync.PushReport) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Sync Report")
	doc.PlainText(res.Summary())

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignRight,
			md.AlignLeft,
		},
		Header: []string{"Change", "Count", "Ids"},
		Rows:   [][]string{},
	}
	appendIDRow(&table, "added here", res.AddedFromLocal)
	appendIDRow(&table, "added on another device", res.AddedFromRemote)
	appendIDRow(&table, "updated, this device won", res.UpdatedFromLocal)
	appendIDRow(&table, "updated, other device won", res.UpdatedFromRemote)
	if len(table.Rows) > 0 {
		doc.Table(table)
	}

	if len(res.AutoResolved) > 0 {
		doc.H2("Auto-resolved")
		doc.PlainText("These records diverged further apart than the trust window, so the newer side won without asking.")
		auto := md.TableSet{
			Alignment: []md.TableAlignment{
				md.AlignLeft,
				md.AlignLeft,
			},
			Header: []string{"Id", "Winner"},
			Rows:   [][]string{},
		}
		for _, a := range res.AutoResolved {
			auto.Rows = append(auto.Rows, []string{a.ID, string(a.Winner)})
		}
		doc.Table(auto)
	}

	if push.Empty() {
		doc.PlainText("No commit was needed.")
		return doc.String()
	}

	doc.H2(fmt.Sprintf("Commit %s", shortHash(push.Commit)))
	files := make([]string, 0, len(push.Uploaded)+len(push.Deleted))
	for _, path := range push.Uploaded {
		files = append(files, "updated "+path)
	}
	for _, path := range push.Deleted {
		files = append(files, "deleted "+path)
	}
	doc.BulletList(files...)

	return doc.String()
}

func shortHash(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
