package parsers

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gaurav-prasanna/partspipe/core"
	"go.uber.org/zap"
)

// Product type keyword sets, checked first against the URL path and
// then against the page content when the URL is uninformative.
var (
	pumpKeywords = []string{"pump", "booster", "circulator", "centrifugal"}
	uvKeywords   = []string{"uv", "uvc", "steriliz", "disinfect"}
)

// curatedPairs are (supplier, productType) combinations known to
// parse reliably; they earn a small confidence bonus.
var curatedPairs = map[[2]string]bool{
	{"Grundfos", "pump"}: true,
	{"Xylem", "pump"}:    true,
	{"Wilo", "pump"}:     true,
	{"TrojanUV", "uv"}:   true,
}

// Options configures parser construction.
type Options struct {
	DefaultCurrency string
	Now             func() time.Time
}

// registryEntry binds a category key to a parser builder. Entries are
// matched in registration order.
type registryEntry struct {
	key   string
	build func(vendor string, opts Options) core.Parser
}

// defaultRegistry lists the built-in equipment classes. Adding a new
// class means adding a parser file and one entry here; the dispatcher
// itself never changes.
func defaultRegistry() []registryEntry {
	return []registryEntry{
		{key: "pump", build: newPumpParser},
		{key: "uv", build: newUVParser},
		{key: "general", build: newGenericParser},
	}
}

// cacheKey identifies a parser instance by supplier and product type.
type cacheKey struct {
	supplier    string
	productType string
}

// Dispatcher resolves a URL or category hint to a vendor parser and
// invokes it. Parser instances are cached per (supplier, productType)
// so repeated dispatches reuse them.
type Dispatcher struct {
	hints    map[string]string // host substring -> vendor
	registry []registryEntry
	opts     Options
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[cacheKey]core.Parser
}

// NewDispatcher creates a Dispatcher over the built-in registry.
// hints maps URL host substrings to vendor names and is treated as
// read-only.
func NewDispatcher(hints map[string]string, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		hints:    hints,
		registry: defaultRegistry(),
		opts:     opts,
		logger:   logger,
		cache:    make(map[cacheKey]core.Parser),
	}
}

// Dispatch tries the domain-based path, then the category-hint path,
// in that fixed order. A parser returning at least one row wins and
// the outcome method is "parser"; a nil return means no parser
// matched (or the matched parser produced nothing) and the caller
// should fall back to the LLM extractor.
func (d *Dispatcher) Dispatch(rawURL string, rows [][]string, contentPreview, categoryHint string) *core.ParseOutcome {
	vendor := d.vendorForURL(rawURL)
	productType := DetectProductType(rawURL, contentPreview)

	if vendor != "" {
		if outcome := d.invoke(vendor, productType, rows, rawURL); outcome != nil {
			return outcome
		}
	}

	if categoryHint != "" {
		hint := strings.ToLower(categoryHint)
		for _, entry := range d.registry {
			if strings.Contains(hint, entry.key) {
				supplier := vendor
				if supplier == "" {
					supplier = "Unknown"
				}
				if outcome := d.invoke(supplier, entry.key, rows, rawURL); outcome != nil {
					return outcome
				}
			}
		}
	}

	return nil
}

// invoke runs the cached parser for (supplier, productType) and wraps
// a non-empty result into a ParseOutcome. Parser errors and empty
// results both yield nil: the error is logged, never surfaced, and
// dispatch degrades to the fallback path.
func (d *Dispatcher) invoke(supplier, productType string, rows [][]string, rawURL string) *core.ParseOutcome {
	parser := d.parserFor(supplier, productType)
	if parser == nil {
		return nil
	}

	result, err := parser.Parse(rows, rawURL)
	if err != nil {
		d.logger.Warn("vendor parser failed",
			zap.String("supplier", supplier),
			zap.String("type", productType),
			zap.String("url", rawURL),
			zap.Error(err))
		return nil
	}
	if result == nil || (len(result.Suppliers) == 0 && len(result.Parts) == 0) {
		return nil
	}

	return &core.ParseOutcome{
		Suppliers:  result.Suppliers,
		Parts:      result.Parts,
		Method:     core.MethodParser,
		Confidence: Confidence(supplier, productType),
	}
}

// parserFor returns the cached parser instance for the pair, building
// it from the registry on first use.
func (d *Dispatcher) parserFor(supplier, productType string) core.Parser {
	key := cacheKey{supplier: supplier, productType: productType}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.cache[key]; ok {
		return p
	}
	for _, entry := range d.registry {
		if entry.key == productType {
			p := entry.build(supplier, d.opts)
			d.cache[key] = p
			return p
		}
	}
	return nil
}

// vendorForURL resolves a vendor by domain hint: the lowercased URL
// host is matched against each configured host substring. Hints are
// checked longest first (ties lexically) so the most specific match
// wins and resolution never depends on map iteration order.
func (d *Dispatcher) vendorForURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Host)
	subs := make([]string, 0, len(d.hints))
	for sub := range d.hints {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if len(subs[i]) != len(subs[j]) {
			return len(subs[i]) > len(subs[j])
		}
		return subs[i] < subs[j]
	})
	for _, sub := range subs {
		if strings.Contains(host, strings.ToLower(sub)) {
			return d.hints[sub]
		}
	}
	return ""
}

// DetectProductType classifies a page as "pump", "uv", or "general".
// The URL path is checked first; when it is uninformative the page
// content preview is scanned for the same keyword sets.
func DetectProductType(rawURL, contentPreview string) string {
	if t := keywordType(urlPath(rawURL)); t != "general" {
		return t
	}
	return keywordType(contentPreview)
}

func keywordType(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range pumpKeywords {
		if strings.Contains(lower, kw) {
			return "pump"
		}
	}
	for _, kw := range uvKeywords {
		if strings.Contains(lower, kw) {
			return "uv"
		}
	}
	return "general"
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Path
}

// Confidence scores a dispatch for observability. It never influences
// routing: base 0.1, +0.4 for a recognized product type, +0.4 for a
// known supplier, +0.1 for curated (supplier, type) pairs, capped at
// 1.0.
func Confidence(supplier, productType string) float64 {
	score := 0.1
	if productType != "general" {
		score += 0.4
	}
	if supplier != "" && supplier != "Unknown" {
		score += 0.4
	}
	if curatedPairs[[2]string{supplier, productType}] {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
