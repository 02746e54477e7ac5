package expensebuddy

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeFormat is the canonical encoding for record timestamps: RFC 3339 in
// UTC with fixed millisecond precision, so that re-encoding a partition
// yields byte-identical output.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CanonTime truncates t to the canonical millisecond precision, in UTC.
func CanonTime(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

// PaymentMethod is an optional structured tag describing how an expense was
// paid, like {Kind: "card", Label: "visa"}. The zero value means unset.
type PaymentMethod struct {
	Kind  string
	Label string
}

// IsZero reports whether the method is unset.
func (p PaymentMethod) IsZero() bool { return p == PaymentMethod{} }

// String formats the method as "kind" or "kind:label", empty when unset.
func (p PaymentMethod) String() string {
	if p.Label == "" {
		return p.Kind
	}
	return p.Kind + ":" + p.Label
}

// ParsePaymentMethod parses "kind" or "kind:label". The empty string is the
// unset method.
func ParsePaymentMethod(str string) (PaymentMethod, error) {
	if str == "" {
		return PaymentMethod{}, nil
	}
	kind, label, _ := strings.Cut(str, ":")
	if kind == "" {
		return PaymentMethod{}, fmt.Errorf("invalid payment method %q: missing kind", str)
	}
	return PaymentMethod{Kind: kind, Label: label}, nil
}

// Record is a single expense entry.
//
// Records are soft-deleted: DeletedAt is set and the record keeps taking
// part in syncs forever, it is never physically erased. Ids are opaque,
// stable, and never reused.
type Record struct {
	ID        string
	Amount    decimal.Decimal
	Category  string
	Date      Date // the day part is the partition key
	Note      string
	Payment   PaymentMethod
	CreatedAt time.Time
	UpdatedAt time.Time // bumped on every edit, drives merge decisions
	DeletedAt time.Time // zero while the record is live
}

// Deleted reports whether the record is soft-deleted.
func (r Record) Deleted() bool { return !r.DeletedAt.IsZero() }

// Equal reports whether r and x carry exactly the same content, timestamps
// compared at the canonical millisecond precision.
func (r Record) Equal(x Record) bool {
	return r.ID == x.ID &&
		r.Amount.Equal(x.Amount) &&
		r.Category == x.Category &&
		r.Date == x.Date &&
		r.Note == x.Note &&
		r.Payment == x.Payment &&
		CanonTime(r.CreatedAt).Equal(CanonTime(x.CreatedAt)) &&
		CanonTime(r.UpdatedAt).Equal(CanonTime(x.UpdatedAt)) &&
		CanonTime(r.DeletedAt).Equal(CanonTime(x.DeletedAt))
}

// Validate checks the structural invariants every stored record must hold.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if r.Date.Day.IsZero() {
		return fmt.Errorf("record %q has no date", r.ID)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("record %q has no creation time", r.ID)
	}
	if r.UpdatedAt.IsZero() {
		return fmt.Errorf("record %q has no update time", r.ID)
	}
	if CanonTime(r.UpdatedAt).Before(CanonTime(r.CreatedAt)) {
		return fmt.Errorf("record %q updated (%s) before created (%s)", r.ID,
			CanonTime(r.UpdatedAt).Format(TimeFormat), CanonTime(r.CreatedAt).Format(TimeFormat))
	}
	return nil
}
