package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supplierStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "suppliers.csv"), SupplierHeader)
}

func TestUpsertAppendsAndRewrites(t *testing.T) {
	s := supplierStore(t)

	price := 299.0
	row := SupplierRow(core.SupplierRecord{
		SKU: "grundfos-aquapump-100", Name: "AquaPump 100", Brand: "Grundfos",
		Model: "AquaPump 100", Category: "pump", URL: "https://grundfos.com/x",
		Currency: "ZAR", Price: &price, LastSeen: "2026-03-01T12:00:00Z",
	})
	require.NoError(t, s.Upsert(row))
	require.NoError(t, s.Rewrite())

	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(SupplierHeader, ","), lines[0])
	assert.Contains(t, lines[1], "grundfos-aquapump-100")
	assert.Contains(t, lines[1], "299")
}

func TestUpsertMergePreservesExistingFields(t *testing.T) {
	s := supplierStore(t)

	first := make([]string, len(SupplierHeader))
	first[0] = "key-1"
	first[11] = "installed at site A" // notes
	require.NoError(t, s.Upsert(first))

	// Re-crawl with a fresh price but no notes: price updates, the
	// previously known notes survive.
	second := make([]string, len(SupplierHeader))
	second[0] = "key-1"
	second[7] = "450"
	require.NoError(t, s.Upsert(second))

	require.NoError(t, s.Rewrite())
	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "450")
	assert.Contains(t, string(content), "installed at site A")
	assert.Equal(t, 1, s.Len())
}

func TestUpsertIdempotent(t *testing.T) {
	s := supplierStore(t)

	row := make([]string, len(SupplierHeader))
	row[0] = "key-1"
	row[1] = "Pump"

	require.NoError(t, s.Upsert(row))
	require.NoError(t, s.Rewrite())
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	require.NoError(t, s.Upsert(row))
	require.NoError(t, s.Rewrite())
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadAdoptsExistingHeaderAndOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suppliers.csv")
	existing := strings.Join(SupplierHeader, ",") + "\n" +
		"key-b,Pump B,,,,,,,,,,,\n" +
		"key-a,Pump A,,,,,,,,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	s := NewStore(path, SupplierHeader)
	row := make([]string, len(SupplierHeader))
	row[0] = "key-a"
	row[1] = "Pump A v2"
	require.NoError(t, s.Upsert(row))
	require.NoError(t, s.Rewrite())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	// Insertion order is preserved across rewrites.
	assert.True(t, strings.HasPrefix(lines[1], "key-b,"))
	assert.True(t, strings.HasPrefix(lines[2], "key-a,Pump A v2"))
}

func TestUpsertEmptyKeyRejected(t *testing.T) {
	s := supplierStore(t)
	err := s.Upsert(make([]string, len(SupplierHeader)))
	assert.Error(t, err)
}

func TestEvidenceLog(t *testing.T) {
	l := NewEvidenceLog()
	l.Append(core.EvidenceEntry{URL: "https://a.com", Method: core.MethodParser})
	l.Append(core.EvidenceEntry{URL: "https://b.com", Method: core.MethodLLMFallback, Error: "llm returned no rows"})

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path, err := l.Flush(t.TempDir(), at)
	require.NoError(t, err)
	assert.Equal(t, "evidence_20260301T120000Z.json", filepath.Base(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "https://a.com")
	assert.Contains(t, string(content), "llm returned no rows")
	// Optional fields are omitted, not emitted as empty strings.
	assert.NotContains(t, string(content), "prompt_excerpt")
}

func TestBuildArtifacts(t *testing.T) {
	dir := t.TempDir()
	suppliers := NewStore(filepath.Join(dir, "suppliers.csv"), SupplierHeader)
	parts := NewStore(filepath.Join(dir, "parts.csv"), PartHeader)
	evidence := NewEvidenceLog()
	evidence.Append(core.EvidenceEntry{URL: "https://a.com", Method: core.MethodParser})

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	set, err := BuildArtifacts(suppliers, parts, evidence, at)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(set.Branch, "partspipe/ingest-"))
	require.Len(t, set.Files, 3)
	assert.Contains(t, set.Files, "suppliers.csv")
	assert.Contains(t, set.Files, "parts.csv")
	assert.Contains(t, set.Files, "evidence_20260301T120000Z.json")
	assert.Contains(t, string(set.Files["suppliers.csv"]), "sku,name,brand")
}
