// Package pipeline wires the stages together: fetch, table
// extraction, parser dispatch, LLM fallback, normalization, and the
// store merge. The three public steps (Crawl, StructExtract,
// WriteAndPersist) mirror the scheduler collaborator's contract and
// are independently callable; Run chains them for the CLI.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gaurav-prasanna/partspipe/config"
	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/fetch"
	"github.com/gaurav-prasanna/partspipe/core/llm"
	"github.com/gaurav-prasanna/partspipe/core/metrics"
	"github.com/gaurav-prasanna/partspipe/core/parsers"
	"github.com/gaurav-prasanna/partspipe/core/store"
	"github.com/gaurav-prasanna/partspipe/core/tables"
)

// methodNone marks evidence entries for URLs that never reached
// extraction (robots block, fetch error).
const methodNone = "none"

// Context holds every stage of the pipeline plus the process-wide
// caches (robots LRU, parser instances). It is constructed once per
// run and passed by reference, so cache lifetime and test isolation
// are explicit rather than hidden in package state.
type Context struct {
	Cfg        *config.Config
	Logger     *zap.Logger
	Fetcher    core.Fetcher
	Tables     core.TableExtractor
	Dispatcher *parsers.Dispatcher
	Fallback   *llm.Extractor
	Suppliers  *store.Store
	Parts      *store.Store
	Evidence   *store.EvidenceLog
	Metrics    *metrics.Metrics

	// Now is the run clock; overridable in tests so record
	// timestamps are reproducible.
	Now func() time.Time

	llmSem chan struct{}
}

// NewContext builds a pipeline Context from configuration and a
// model router.
func NewContext(cfg *config.Config, router core.Router, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now

	dispatcher := parsers.NewDispatcher(cfg.DomainHints, parsers.Options{
		DefaultCurrency: cfg.Store.DefaultCurrency,
		Now:             now,
	}, logger)

	return &Context{
		Cfg:    cfg,
		Logger: logger,
		Fetcher: fetch.New(fetch.Config{
			UserAgent:       cfg.Fetch.UserAgent,
			Timeout:         cfg.Fetch.Timeout,
			RequestsPerSec:  cfg.Fetch.RequestsPerSec,
			RobotsCacheSize: cfg.Fetch.RobotsCacheSize,
		}, logger),
		Tables:     tables.New(),
		Dispatcher: dispatcher,
		Fallback:   llm.NewExtractor(router, cfg.Store.DefaultCurrency, now, logger),
		Suppliers:  store.NewStore(filepath.Join(cfg.Store.OutputDir, "suppliers.csv"), store.SupplierHeader),
		Parts:      store.NewStore(filepath.Join(cfg.Store.OutputDir, "parts.csv"), store.PartHeader),
		Evidence:   store.NewEvidenceLog(),
		Metrics:    metrics.New(),
		Now:        now,
		llmSem:     make(chan struct{}, cfg.Workers.LLM),
	}
}

// Extraction is the accumulated output of StructExtract, ready for
// the merge step.
type Extraction struct {
	Suppliers []core.SupplierRecord
	Parts     []core.PartRecord
}

// Crawl fetches all URLs under the fetch concurrency limit. Results
// come back in input order; per-URL failures are carried inside the
// FetchResult, never as errors. Cancelling the context stops issuing
// new fetches promptly.
func (p *Context) Crawl(ctx context.Context, urls []string) []*core.FetchResult {
	results := make([]*core.FetchResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Cfg.Workers.Fetch)
	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &core.FetchResult{URL: u, SkipReason: core.SkipErrorPrefix + err.Error()}
				return nil
			}
			p.Metrics.FetchesTotal.Inc()
			results[i] = p.Fetcher.Fetch(gctx, u)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}

// StructExtract runs table extraction and parser dispatch per fetch
// result, falling back to the LLM extractor when no parser produces
// rows. The LLM step runs under its own, lower concurrency ceiling.
// Exactly one evidence entry is appended per input URL, in input
// order.
func (p *Context) StructExtract(ctx context.Context, results []*core.FetchResult, categoryHint string) *Extraction {
	outcomes := make([]*core.ParseOutcome, len(results))
	entries := make([]core.EvidenceEntry, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Cfg.Workers.Fetch)
	for i, res := range results {
		g.Go(func() error {
			outcomes[i], entries[i] = p.extractOne(gctx, res, categoryHint)
			return nil
		})
	}
	_ = g.Wait()

	ext := &Extraction{}
	for i, outcome := range outcomes {
		p.Evidence.Append(entries[i])
		if outcome == nil {
			continue
		}
		ext.Suppliers = append(ext.Suppliers, outcome.Suppliers...)
		ext.Parts = append(ext.Parts, outcome.Parts...)
	}
	return ext
}

// extractOne processes a single fetch result through dispatch and
// fallback, returning the outcome (nil when the URL contributed
// nothing) and its evidence entry.
func (p *Context) extractOne(ctx context.Context, res *core.FetchResult, categoryHint string) (*core.ParseOutcome, core.EvidenceEntry) {
	if res == nil {
		return nil, core.EvidenceEntry{Method: methodNone, Error: "missing fetch result"}
	}
	if res.Skipped() {
		if res.SkipReason == core.SkipBlockedByRobots {
			p.Metrics.RobotsBlocked.Inc()
		} else {
			p.Metrics.FetchErrors.Inc()
		}
		return nil, core.EvidenceEntry{URL: res.URL, Method: methodNone, Error: res.SkipReason}
	}

	groups := p.Tables.Extract(res)
	primary := tables.Primary(groups)

	var preview string
	if !tables.IsPDF(res.URL, res.ContentType) {
		md, err := tables.ContentPreview(string(res.Body))
		if err == nil {
			preview = md
		}
	}

	var rows [][]string
	if primary != nil {
		rows = primary.Rows
	} else {
		rows = previewRows(preview)
	}
	if len(rows) == 0 {
		return nil, core.EvidenceEntry{URL: res.URL, Method: methodNone, Error: "no extractable content"}
	}

	// Parser-first: a heuristic parser producing any rows wins and
	// the LLM is never consulted for this URL.
	if outcome := p.Dispatcher.Dispatch(res.URL, rows, preview, categoryHint); outcome != nil {
		p.Metrics.ParserHits.Inc()
		p.Logger.Debug("vendor parser extracted records",
			zap.String("url", res.URL),
			zap.Int("suppliers", len(outcome.Suppliers)),
			zap.Float64("confidence", outcome.Confidence))
		return outcome, core.EvidenceEntry{URL: res.URL, Method: core.MethodParser}
	}

	// Respect cancellation before spending an LLM call.
	select {
	case p.llmSem <- struct{}{}:
		defer func() { <-p.llmSem }()
	case <-ctx.Done():
		return nil, core.EvidenceEntry{URL: res.URL, Method: methodNone, Error: core.SkipErrorPrefix + ctx.Err().Error()}
	}

	p.Metrics.LLMFallbacks.Inc()
	outcome, entry := p.Fallback.Extract(ctx, res.URL, rows)
	if outcome == nil {
		p.Metrics.LLMFailures.Inc()
	}
	return outcome, entry
}

// WriteAndPersist merges the extraction into the stores, rewrites
// them atomically, flushes the evidence artifact, and returns the
// publisher payload. Only a store open/write failure is fatal; it
// never leaves a partially rewritten store behind.
func (p *Context) WriteAndPersist(_ context.Context, ext *Extraction) (*store.ArtifactSet, error) {
	for _, rec := range ext.Suppliers {
		if err := p.Suppliers.Upsert(store.SupplierRow(rec)); err != nil {
			return nil, fmt.Errorf("upserting supplier %s: %w", rec.SKU, err)
		}
		p.Metrics.RowsUpserted.Inc()
	}
	for _, rec := range ext.Parts {
		if err := p.Parts.Upsert(store.PartRow(rec)); err != nil {
			return nil, fmt.Errorf("upserting part %s: %w", rec.PartNumber, err)
		}
		p.Metrics.RowsUpserted.Inc()
	}

	if err := p.Suppliers.Rewrite(); err != nil {
		return nil, err
	}
	if err := p.Parts.Rewrite(); err != nil {
		return nil, err
	}

	at := p.Now()
	if _, err := p.Evidence.Flush(p.Cfg.Store.OutputDir, at); err != nil {
		return nil, err
	}

	return store.BuildArtifacts(p.Suppliers, p.Parts, p.Evidence, at)
}

// Run executes the full pipeline for a batch of URLs.
func (p *Context) Run(ctx context.Context, urls []string, categoryHint string) (*store.ArtifactSet, error) {
	results := p.Crawl(ctx, urls)
	ext := p.StructExtract(ctx, results, categoryHint)
	return p.WriteAndPersist(ctx, ext)
}

// previewRows turns a markdown content preview into single-cell rows
// for the LLM prompt when a page carries no table.
func previewRows(preview string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(preview, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rows = append(rows, []string{line})
	}
	return rows
}
