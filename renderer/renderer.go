// Package renderer turns ledger structures into markdown, ready for a
// terminal renderer or a plain pager.
package renderer

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount in the ledger currency, with the currency's
// own symbol and decimal conventions. An empty currency falls back to a
// plain number.
func FormatAmount(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	// to get a never nil currency, go through the money constructor
	cur := money.New(0, currency).Currency()
	return cur.Formatter().Format(amount.Shift(int32(cur.Fraction)).IntPart())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// appendIDRow adds a (label, count, ids) row, skipping empty id lists.
func appendIDRow(table *md.TableSet, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	table.Rows = append(table.Rows, []string{
		label,
		fmt.Sprintf("%d", len(ids)),
		strings.Join(ids, ", "),
	})
}
