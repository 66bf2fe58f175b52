// Package store owns the on-disk record stores and the evidence log.
// Each store is a flat CSV file with a fixed header schema, loaded
// whole into memory, merged by key, and rewritten atomically. All
// mutation goes through this package: upsert-and-rewrite is a
// serialized critical section, one writer per store at a time.
package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gaurav-prasanna/partspipe/core"
)

// Fixed header schemas. Written once when a store file is created and
// never reordered afterwards.
var (
	SupplierHeader = []string{
		"sku", "name", "brand", "model", "category", "url", "currency",
		"price", "availability", "moq", "lead_time", "notes", "last_seen",
	}
	PartHeader = []string{
		"part_number", "description", "category", "specs_json", "unit",
		"price", "currency", "supplier", "sku", "url", "notes", "last_seen",
	}
)

// Store is one keyed CSV table. The key is the first header column.
// Stores are expected to stay small (hundreds to low thousands of
// rows), so a full in-memory load and linear key scan is fine.
type Store struct {
	path   string
	header []string

	mu     sync.Mutex
	rows   [][]string
	index  map[string]int
	loaded bool
}

// NewStore creates a Store over the given file path and header
// schema. The file is read lazily on first use.
func NewStore(path string, header []string) *Store {
	return &Store{path: path, header: header, index: make(map[string]int)}
}

// Load reads all existing rows into memory. Missing file is not an
// error: the store starts empty and the header is written on the
// first rewrite.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening store %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("reading store %s: %w", s.path, err)
	}
	if len(records) == 0 {
		s.loaded = true
		return nil
	}

	// The on-disk header is authoritative once the file exists.
	s.header = records[0]
	for _, row := range records[1:] {
		padded := padRow(row, len(s.header))
		s.index[padded[0]] = len(s.rows)
		s.rows = append(s.rows, padded)
	}
	s.loaded = true
	return nil
}

// Upsert merges one row into the store by key (first column).
// Existing rows are updated last-write-wins per field: only non-empty
// incoming fields overwrite, so a re-crawl that no longer sees a
// value never erases a previously known one. Unknown keys append in
// insertion order.
func (s *Store) Upsert(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	incoming := padRow(row, len(s.header))
	key := incoming[0]
	if key == "" {
		return fmt.Errorf("upsert into %s: empty key", s.path)
	}

	if idx, ok := s.index[key]; ok {
		existing := s.rows[idx]
		for i, v := range incoming {
			if v != "" {
				existing[i] = v
			}
		}
		return nil
	}

	s.index[key] = len(s.rows)
	s.rows = append(s.rows, incoming)
	return nil
}

// Rewrite writes the full row set back to disk in header order. The
// write is all-or-nothing: content goes to a temp file in the same
// directory, then replaces the store by rename. Upserting the same
// rows twice and rewriting yields byte-identical files.
func (s *Store) Rewrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	content, err := s.renderLocked()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing store %s: %w", s.path, err)
	}
	return nil
}

// Render returns the store's CSV content as it would be written by
// Rewrite, for the publisher artifact map.
func (s *Store) Render() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s.renderLocked()
}

func (s *Store) renderLocked() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, row := range s.rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing store content: %w", err)
	}
	return buf.Bytes(), nil
}

// Len returns the current row count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// SupplierRow flattens a SupplierRecord into SupplierHeader order.
func SupplierRow(rec core.SupplierRecord) []string {
	return []string{
		rec.SKU, rec.Name, rec.Brand, rec.Model, rec.Category, rec.URL,
		rec.Currency, formatPrice(rec.Price), rec.Availability, rec.MOQ,
		rec.LeadTime, rec.Notes, rec.LastSeen,
	}
}

// PartRow flattens a PartRecord into PartHeader order.
func PartRow(rec core.PartRecord) []string {
	return []string{
		rec.PartNumber, rec.Description, rec.Category, rec.SpecsJSON,
		rec.Unit, formatPrice(rec.Price), rec.Currency, rec.Supplier,
		rec.SKU, rec.URL, rec.Notes, rec.LastSeen,
	}
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func padRow(row []string, width int) []string {
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
