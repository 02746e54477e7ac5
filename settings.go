package expensebuddy

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// this file contains the settings document and its merger: the same
// newest-wins reconciliation as records, without the conflict escalation.
// Settings are low-stakes, so the trust window does not apply: the strictly
// newer version always wins and remote wins exact ties.

// Setting is a single keyed preference replicated across devices.
type Setting struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Instrument is a saved payment instrument (a card, an account) replicated
// across devices. Like records, instruments are soft-deleted.
type Instrument struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Kind      string    `json:"kind"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `json:"deletedAt,omitzero"`
}

// Settings is the replicated settings document, stored as settings.json
// both locally and remotely.
type Settings struct {
	Currency    string       `json:"currency"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Entries     []Setting    `json:"entries"`
	Instruments []Instrument `json:"instruments"`
}

func (s Setting) key() string              { return s.ID }
func (s Setting) modifiedAt() time.Time    { return s.UpdatedAt }
func (i Instrument) key() string           { return i.ID }
func (i Instrument) modifiedAt() time.Time { return i.UpdatedAt }

// versioned is the shape shared by the reconciled secondary record types.
type versioned interface {
	key() string
	modifiedAt() time.Time
}

// mergeNewest unions two slices by id: the strictly newer version wins,
// remote wins exact ties, and the output is sorted by id.
func mergeNewest[T versioned](local, remote []T) []T {
	byID := make(map[string]T, len(local)+len(remote))
	for _, v := range local {
		byID[v.key()] = v
	}
	for _, v := range remote {
		prev, ok := byID[v.key()]
		if !ok || !v.modifiedAt().Before(prev.modifiedAt()) {
			byID[v.key()] = v
		}
	}
	out := make([]T, 0, len(byID))
	for _, v := range byID {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return strings.Compare(a.key(), b.key()) })
	return out
}

// MergeSettings reconciles two settings documents. Either side may be nil
// (no document yet); both nil yields nil.
func MergeSettings(local, remote *Settings) *Settings {
	if local == nil && remote == nil {
		return nil
	}
	if local == nil {
		cp := *remote
		return &cp
	}
	if remote == nil {
		cp := *local
		return &cp
	}
	out := &Settings{}
	// Document-level fields follow the same rule as entries: newer wins,
	// remote wins exact ties.
	if remote.UpdatedAt.Before(local.UpdatedAt) {
		out.Currency, out.UpdatedAt = local.Currency, local.UpdatedAt
	} else {
		out.Currency, out.UpdatedAt = remote.Currency, remote.UpdatedAt
	}
	out.Entries = mergeNewest(local.Entries, remote.Entries)
	out.Instruments = mergeNewest(local.Instruments, remote.Instruments)
	return out
}

// EncodeSettings writes the canonical bytes of a settings document: fixed
// field order, entries and instruments sorted by id, indented, trailing
// newline. Canonical bytes keep the remote blob stable across devices.
func EncodeSettings(w io.Writer, s *Settings) error {
	canon := Settings{
		Currency:    s.Currency,
		UpdatedAt:   s.UpdatedAt,
		Entries:     mergeNewest(s.Entries, nil),
		Instruments: mergeNewest(s.Instruments, nil),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&canon); err != nil {
		return fmt.Errorf("cannot encode settings: %w", err)
	}
	return nil
}

// DecodeSettings reads a settings document back.
func DecodeSettings(r io.Reader) (*Settings, error) {
	var s Settings
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("cannot decode settings: %w", err)
	}
	return &s, nil
}
