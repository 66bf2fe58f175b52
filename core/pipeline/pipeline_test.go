package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gaurav-prasanna/partspipe/config"
	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/fetch"
	"github.com/gaurav-prasanna/partspipe/core/llm"
	"github.com/gaurav-prasanna/partspipe/core/metrics"
	"github.com/gaurav-prasanna/partspipe/core/parsers"
	"github.com/gaurav-prasanna/partspipe/core/store"
	"github.com/gaurav-prasanna/partspipe/core/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// spyRouter counts LLM calls and returns a canned response.
type spyRouter struct {
	calls    atomic.Int32
	response string
	err      error
}

func (s *spyRouter) Complete(context.Context, string, string) (string, error) {
	s.calls.Add(1)
	return s.response, s.err
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Fetch: config.FetchConfig{
			Timeout:         5 * time.Second,
			RobotsCacheSize: 16,
		},
		Store:   config.StoreConfig{OutputDir: dir, DefaultCurrency: "ZAR"},
		Workers: config.WorkerConfig{Fetch: 4, LLM: 1},
		DomainHints: map[string]string{
			"grundfos.com": "Grundfos",
		},
	}
}

// newTestContext wires a Context with a fixed clock so record
// timestamps, and therefore store bytes, are reproducible.
func newTestContext(cfg *config.Config, router core.Router) *Context {
	logger := zap.NewNop()
	return &Context{
		Cfg:    cfg,
		Logger: logger,
		Fetcher: fetch.New(fetch.Config{
			Timeout:         cfg.Fetch.Timeout,
			RobotsCacheSize: cfg.Fetch.RobotsCacheSize,
		}, logger),
		Tables: tables.New(),
		Dispatcher: parsers.NewDispatcher(cfg.DomainHints, parsers.Options{
			DefaultCurrency: cfg.Store.DefaultCurrency,
			Now:             fixedNow,
		}, logger),
		Fallback:  llm.NewExtractor(router, cfg.Store.DefaultCurrency, fixedNow, logger),
		Suppliers: store.NewStore(filepath.Join(cfg.Store.OutputDir, "suppliers.csv"), store.SupplierHeader),
		Parts:     store.NewStore(filepath.Join(cfg.Store.OutputDir, "parts.csv"), store.PartHeader),
		Evidence:  store.NewEvidenceLog(),
		Metrics:   metrics.New(),
		Now:       fixedNow,
		llmSem:    make(chan struct{}, cfg.Workers.LLM),
	}
}

const pumpPage = `<html><body>
<main>
<h1>AquaPump 100 booster pump</h1>
<table>
<tr><th>Model</th><th>Flow Rate</th><th>Price</th><th>SKU</th></tr>
<tr><td>AquaPump 100</td><td>50 L/h</td><td>$299</td><td>AP-100</td></tr>
</table>
</main>
</body></html>`

func pumpResult() *core.FetchResult {
	return &core.FetchResult{
		URL:         "https://grundfos.com/x",
		ContentType: "text/html",
		Body:        []byte(pumpPage),
	}
}

func TestEndToEndPumpScenario(t *testing.T) {
	dir := t.TempDir()
	router := &spyRouter{}
	p := newTestContext(testConfig(dir), router)

	ext := p.StructExtract(context.Background(), []*core.FetchResult{pumpResult()}, "")
	set, err := p.WriteAndPersist(context.Background(), ext)
	require.NoError(t, err)

	require.Len(t, ext.Suppliers, 1)
	sup := ext.Suppliers[0]
	assert.Equal(t, "grundfos-aquapump-100", sup.SKU)
	require.NotNil(t, sup.Price)
	assert.InDelta(t, 299.0, *sup.Price, 1e-9)

	require.Len(t, ext.Parts, 1)
	assert.Contains(t, ext.Parts[0].SpecsJSON, `"flow_m3h":0.05`)

	// Parser success means the LLM was never consulted.
	assert.Equal(t, int32(0), router.calls.Load())

	// Evidence records the parser method for the URL.
	entries := p.Evidence.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.MethodParser, entries[0].Method)

	// Publisher payload carries both stores plus the evidence file.
	assert.Len(t, set.Files, 3)

	content, err := os.ReadFile(filepath.Join(dir, "suppliers.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "grundfos-aquapump-100")
}

func TestPipelineIdempotence(t *testing.T) {
	dir := t.TempDir()

	runOnce := func() {
		p := newTestContext(testConfig(dir), &spyRouter{})
		ext := p.StructExtract(context.Background(), []*core.FetchResult{pumpResult()}, "")
		_, err := p.WriteAndPersist(context.Background(), ext)
		require.NoError(t, err)
	}

	runOnce()
	first, err := os.ReadFile(filepath.Join(dir, "suppliers.csv"))
	require.NoError(t, err)
	firstParts, err := os.ReadFile(filepath.Join(dir, "parts.csv"))
	require.NoError(t, err)

	runOnce()
	second, err := os.ReadFile(filepath.Join(dir, "suppliers.csv"))
	require.NoError(t, err)
	secondParts, err := os.ReadFile(filepath.Join(dir, "parts.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstParts, secondParts)
}

func TestLLMFallbackWhenNoParserMatches(t *testing.T) {
	dir := t.TempDir()
	router := &spyRouter{response: `{"suppliers":[{"name":"Mystery Valve","brand":"Acme"}],"parts":[]}`}
	p := newTestContext(testConfig(dir), router)

	res := &core.FetchResult{
		URL:         "https://unknown-vendor.example/item",
		ContentType: "text/html",
		Body: []byte(`<html><body><table>
			<tr><th>Thing</th><th>Value</th><th>Extra</th></tr>
			<tr><td>a</td><td>b</td><td>c</td></tr>
		</table></body></html>`),
	}

	ext := p.StructExtract(context.Background(), []*core.FetchResult{res}, "")
	assert.Equal(t, int32(1), router.calls.Load())
	require.Len(t, ext.Suppliers, 1)
	assert.Equal(t, "Acme", ext.Suppliers[0].Brand)

	entries := p.Evidence.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.MethodLLMFallback, entries[0].Method)
}

func TestLLMFailureContributesNoRecords(t *testing.T) {
	dir := t.TempDir()
	router := &spyRouter{err: errors.New("backend down")}
	p := newTestContext(testConfig(dir), router)

	res := &core.FetchResult{
		URL:         "https://unknown-vendor.example/item",
		ContentType: "text/html",
		Body:        []byte(`<html><body><p>No tables, just prose about a valve.</p></body></html>`),
	}

	ext := p.StructExtract(context.Background(), []*core.FetchResult{res}, "")
	assert.Empty(t, ext.Suppliers)
	assert.Empty(t, ext.Parts)

	entries := p.Evidence.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "backend down")
}

func TestSkippedFetchGetsEvidence(t *testing.T) {
	dir := t.TempDir()
	p := newTestContext(testConfig(dir), &spyRouter{})

	results := []*core.FetchResult{
		{URL: "https://blocked.example/x", SkipReason: core.SkipBlockedByRobots},
		{URL: "https://down.example/y", SkipReason: "error: unexpected status 500"},
	}

	ext := p.StructExtract(context.Background(), results, "")
	assert.Empty(t, ext.Suppliers)

	entries := p.Evidence.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, core.SkipBlockedByRobots, entries[0].Error)
	assert.Equal(t, "error: unexpected status 500", entries[1].Error)
}

func TestCrawlRespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		pageHits.Add(1)
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := newTestContext(testConfig(dir), &spyRouter{})

	results := p.Crawl(context.Background(), []string{srv.URL + "/catalog"})
	require.Len(t, results, 1)
	assert.Equal(t, core.SkipBlockedByRobots, results[0].SkipReason)
	assert.Equal(t, int32(0), pageHits.Load())
}

func TestCrawlPreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := newTestContext(testConfig(dir), &spyRouter{})

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	results := p.Crawl(context.Background(), urls)
	require.Len(t, results, 3)
	for i, u := range urls {
		assert.Equal(t, u, results[i].URL)
	}
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	p := newTestContext(testConfig(dir), &spyRouter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.Crawl(ctx, []string{"https://example.com/a"})
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].SkipReason)
}
