package expensebuddy

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// this file contains the day-partition codec: how records become the
// canonical CSV bytes that are hashed, compared and committed.
//
// Canonical means byte-stable: a fixed header, one row per record sorted by
// id, timestamps at fixed millisecond precision in UTC. Two devices holding
// the same records always produce the same partition bytes, which is what
// makes hash-based write avoidance possible.

// PartitionDir is the remote directory that holds the day partitions.
const PartitionDir = "records"

// SettingsFile is the name of the replicated settings document.
const SettingsFile = "settings.json"

const partitionExt = ".csv"

var csvHeader = []string{"id", "amount", "category", "date", "note", "payment", "created_at", "updated_at", "deleted_at"}

// PartitionName returns the file name holding a day's records.
func PartitionName(day Day) string { return day.String() + partitionExt }

// PartitionPath returns the repo-relative path of a day's partition.
func PartitionPath(day Day) string { return PartitionDir + "/" + PartitionName(day) }

// ParsePartitionName extracts the day from a partition file name.
func ParsePartitionName(name string) (Day, error) {
	base := strings.TrimSuffix(name, partitionExt)
	if base == name {
		return Day{}, fmt.Errorf("invalid partition name %q: want <day>%s", name, partitionExt)
	}
	return ParseDay(base)
}

// ParsePartitionPath extracts the day from a repo-relative partition path.
func ParsePartitionPath(path string) (Day, error) {
	name, ok := strings.CutPrefix(path, PartitionDir+"/")
	if !ok {
		return Day{}, fmt.Errorf("invalid partition path %q: want %s/<day>%s", path, PartitionDir, partitionExt)
	}
	return ParsePartitionName(name)
}

// GroupByDay buckets records by their calendar day.
func GroupByDay(records []Record) map[Day][]Record {
	out := make(map[Day][]Record)
	for _, r := range records {
		out[r.Date.Day] = append(out[r.Date.Day], r)
	}
	return out
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return CanonTime(t).Format(TimeFormat)
}

func decodeTime(field, str string) (time.Time, error) {
	if str == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeFormat, str)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", field, str, err)
	}
	return CanonTime(t), nil
}

func encodeRow(r Record) []string {
	return []string{
		r.ID,
		r.Amount.String(),
		r.Category,
		r.Date.String(),
		r.Note,
		r.Payment.String(),
		encodeTime(r.CreatedAt),
		encodeTime(r.UpdatedAt),
		encodeTime(r.DeletedAt),
	}
}

func decodeRow(row []string) (Record, error) {
	var r Record
	var err error
	r.ID = row[0]
	if r.Amount, err = decimal.NewFromString(row[1]); err != nil {
		return Record{}, fmt.Errorf("invalid amount %q: %w", row[1], err)
	}
	r.Category = row[2]
	if r.Date, err = ParseDate(row[3]); err != nil {
		return Record{}, err
	}
	r.Note = row[4]
	if r.Payment, err = ParsePaymentMethod(row[5]); err != nil {
		return Record{}, err
	}
	if r.CreatedAt, err = decodeTime("created_at", row[6]); err != nil {
		return Record{}, err
	}
	if r.UpdatedAt, err = decodeTime("updated_at", row[7]); err != nil {
		return Record{}, err
	}
	if r.DeletedAt, err = decodeTime("deleted_at", row[8]); err != nil {
		return Record{}, err
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// EncodeRecords writes the canonical CSV bytes for a record set: the header
// then one row per record, sorted by (day, id).
func EncodeRecords(w io.Writer, records []Record) error {
	sorted := slices.Clone(records)
	SortRecords(sorted)

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("cannot write header: %w", err)
	}
	for _, r := range sorted {
		if err := cw.Write(encodeRow(r)); err != nil {
			return fmt.Errorf("cannot write record %q: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeRecords reads CSV bytes produced by EncodeRecords back into records.
func DecodeRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil // an empty file holds no records
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	if !slices.Equal(header, csvHeader) {
		return nil, fmt.Errorf("unexpected header %v: want %v", header, csvHeader)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read row: %w", err)
		}
		rec, err := decodeRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Partitions returns the canonical partition set for a record slice, as a
// map of repo-relative path to bytes.
func Partitions(records []Record) (map[string][]byte, error) {
	grouped := GroupByDay(records)
	out := make(map[string][]byte, len(grouped))
	for day, group := range grouped {
		var buf bytes.Buffer
		if err := EncodeRecords(&buf, group); err != nil {
			return nil, fmt.Errorf("cannot encode partition %s: %w", PartitionName(day), err)
		}
		out[PartitionPath(day)] = buf.Bytes()
	}
	return out, nil
}
