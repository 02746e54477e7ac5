package expensebuddy

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// this file contains the local replica: a plain-text copy of every record
// plus the settings document, living in a folder. It stays human readable
// and diffable, the same philosophy as the remote layout.
//
// The replica is read whole and replaced whole: the merge engine always
// produces the full reconciled set, so there is no point in partial writes.
// Replacement goes through a temp file and a rename, so a crash mid-write
// never leaves a half ledger behind.

const ledgerFilename = "ledger.csv"

// FileStore is the on-disk local replica of the ledger.
type FileStore struct {
	dir string
}

// NewFileStore returns a replica rooted at dir. The folder is created on
// first write.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// Dir returns the replica's folder.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) ledgerPath() string   { return filepath.Join(s.dir, ledgerFilename) }
func (s *FileStore) settingsPath() string { return filepath.Join(s.dir, SettingsFile) }

// GetAll loads every record of the replica. A replica that does not exist
// yet is empty, not an error.
func (s *FileStore) GetAll() ([]Record, error) {
	f, err := os.Open(s.ledgerPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load error: cannot open ledger %q: %w", s.ledgerPath(), err)
	}
	defer f.Close()
	records, err := DecodeRecords(f)
	if err != nil {
		return nil, fmt.Errorf("load error: ledger %q: %w", s.ledgerPath(), err)
	}
	return records, nil
}

// ReplaceAll atomically replaces the replica's content with records.
func (s *FileStore) ReplaceAll(records []Record) error {
	var buf bytes.Buffer
	if err := EncodeRecords(&buf, records); err != nil {
		return fmt.Errorf("persist error: cannot encode ledger: %w", err)
	}
	if err := writeFileAtomic(s.ledgerPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("persist error: %w", err)
	}
	log.Printf("replace-ledger file=%q records=%d", s.ledgerPath(), len(records))
	return nil
}

// Settings loads the replica's settings document, nil when none exists yet.
func (s *FileStore) Settings() (*Settings, error) {
	f, err := os.Open(s.settingsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load error: cannot open settings %q: %w", s.settingsPath(), err)
	}
	defer f.Close()
	settings, err := DecodeSettings(f)
	if err != nil {
		return nil, fmt.Errorf("load error: settings %q: %w", s.settingsPath(), err)
	}
	return settings, nil
}

// ReplaceSettings atomically replaces the replica's settings document.
func (s *FileStore) ReplaceSettings(settings *Settings) error {
	var buf bytes.Buffer
	if err := EncodeSettings(&buf, settings); err != nil {
		return fmt.Errorf("persist error: %w", err)
	}
	if err := writeFileAtomic(s.settingsPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("persist error: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a sibling temp file then renames it over
// path, creating the parent folder when needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create folder %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file in %q: %w", dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot write %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot close %q: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot replace %q: %w", path, err)
	}
	return nil
}
