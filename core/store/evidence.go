package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
)

// EvidenceLog collects the per-URL audit entries for one run.
// Entries are append-only: one per processed URL, written regardless
// of whether the URL contributed records. The flushed JSON array is
// the single source of truth for why a URL yielded nothing.
type EvidenceLog struct {
	mu      sync.Mutex
	entries []core.EvidenceEntry
}

// NewEvidenceLog creates an empty EvidenceLog.
func NewEvidenceLog() *EvidenceLog {
	return &EvidenceLog{}
}

// Append records one evidence entry. Safe for concurrent use.
func (l *EvidenceLog) Append(entry core.EvidenceEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (l *EvidenceLog) Entries() []core.EvidenceEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.EvidenceEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Render serializes the entries as an indented JSON array.
func (l *EvidenceLog) Render() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries
	if entries == nil {
		entries = []core.EvidenceEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling evidence: %w", err)
	}
	return data, nil
}

// Flush writes the evidence array as a timestamped artifact in dir
// and returns the file path.
func (l *EvidenceLog) Flush(dir string, at time.Time) (string, error) {
	data, err := l.Render()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating evidence directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, EvidenceFilename(at))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing evidence file %s: %w", path, err)
	}
	return path, nil
}

// EvidenceFilename names the evidence artifact for a run timestamp.
func EvidenceFilename(at time.Time) string {
	return "evidence_" + at.UTC().Format("20060102T150405Z") + ".json"
}
