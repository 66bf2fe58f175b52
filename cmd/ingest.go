// Package cmd — ingest command.
// This is the main command that orchestrates the pipeline:
// fetch → table extraction → parser dispatch / LLM fallback → store merge.
//
// It handles flag validation, URL list assembly, and run reporting.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gaurav-prasanna/partspipe/config"
	"github.com/gaurav-prasanna/partspipe/core"
	"github.com/gaurav-prasanna/partspipe/core/llm"
	"github.com/gaurav-prasanna/partspipe/core/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Flag variables.
var (
	flagCategory    string
	flagURLsFile    string
	flagOutDir      string
	flagMetricsPort int
	flagVerbose     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>...",
	Short: "Fetch supplier pages and merge extracted records into the stores",
	Long: `Ingest fetches each URL (robots.txt permitting), extracts the tabular
data, routes it through a vendor parser or the LLM fallback, and merges
the normalized supplier and part records into the CSV stores.

Examples:
  partspipe ingest https://grundfos.com/products/pumps/cr
  partspipe ingest --urls-file urls.txt --category "UV Sterilizers"
  partspipe ingest https://example.com/datasheet.pdf --out-dir ./data`,
	Args: cobra.ArbitraryArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&flagCategory, "category", "", "Category hint applied when no domain mapping matches")
	ingestCmd.Flags().StringVar(&flagURLsFile, "urls-file", "", "File with one URL per line (merged with positional URLs)")
	ingestCmd.Flags().StringVar(&flagOutDir, "out-dir", "", "Output directory for stores and evidence (overrides config)")
	ingestCmd.Flags().IntVar(&flagMetricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	ingestCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

func runIngest(cmd *cobra.Command, args []string) error {
	urls, err := collectURLs(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or via --urls-file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if flagOutDir != "" {
		cfg.Store.OutputDir = flagOutDir
	}
	if err := os.MkdirAll(cfg.Store.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	router := llm.NewRouter(llm.RouterConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
		Tasks:   cfg.LLM.Tasks,
	})

	p := pipeline.NewContext(cfg, router, logger)

	if flagMetricsPort > 0 {
		p.Metrics.Serve(flagMetricsPort)
		logger.Info("metrics endpoint started", zap.Int("port", flagMetricsPort))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stdout, "Ingesting %d URLs into %s\n", len(urls), cfg.Store.OutputDir)

	results := p.Crawl(ctx, urls)
	reportFetches(results)

	ext := p.StructExtract(ctx, results, flagCategory)
	set, err := p.WriteAndPersist(ctx, ext)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "✓ %d supplier records, %d part records merged\n", len(ext.Suppliers), len(ext.Parts))
	fmt.Fprintf(os.Stdout, "✓ Artifacts staged for branch %s (%d files)\n", set.Branch, len(set.Files))
	return nil
}

// collectURLs merges positional arguments with --urls-file lines,
// validating each and deduplicating while preserving order.
func collectURLs(args []string) ([]string, error) {
	raw := append([]string(nil), args...)

	if flagURLsFile != "" {
		f, err := os.Open(flagURLsFile)
		if err != nil {
			return nil, fmt.Errorf("opening --urls-file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading --urls-file: %w", err)
		}
	}

	seen := make(map[string]bool, len(raw))
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid URL: %s (must include scheme, e.g. https://example.com)", u)
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls, nil
}

// reportFetches prints per-URL fetch outcomes in input order.
func reportFetches(results []*core.FetchResult) {
	for i, res := range results {
		switch {
		case res == nil:
			continue
		case res.SkipReason == core.SkipBlockedByRobots:
			fmt.Fprintf(os.Stderr, "[%d/%d] ✗ Blocked by robots.txt: %s\n", i+1, len(results), res.URL)
		case res.Skipped():
			fmt.Fprintf(os.Stderr, "[%d/%d] ✗ %s: %s\n", i+1, len(results), strings.TrimPrefix(res.SkipReason, core.SkipErrorPrefix), res.URL)
		default:
			fmt.Fprintf(os.Stdout, "[%d/%d] ✓ Fetched %s (%s)\n", i+1, len(results), res.URL, res.ContentType)
		}
	}
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
