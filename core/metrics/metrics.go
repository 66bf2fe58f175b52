// Package metrics exposes pipeline counters for observability.
// Counters exist whether or not the /metrics endpoint is served.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. A fresh set is created per
// process so tests stay isolated from each other.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal  prometheus.Counter
	RobotsBlocked prometheus.Counter
	FetchErrors   prometheus.Counter
	ParserHits    prometheus.Counter
	LLMFallbacks  prometheus.Counter
	LLMFailures   prometheus.Counter
	RowsUpserted  prometheus.Counter
}

// New creates and registers the pipeline counters on a private
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:      reg,
		FetchesTotal:  counter(reg, "partspipe_fetches_total", "Total URLs fetched"),
		RobotsBlocked: counter(reg, "partspipe_robots_blocked_total", "URLs skipped by robots policy"),
		FetchErrors:   counter(reg, "partspipe_fetch_errors_total", "URLs skipped by fetch errors"),
		ParserHits:    counter(reg, "partspipe_parser_hits_total", "URLs extracted by vendor parsers"),
		LLMFallbacks:  counter(reg, "partspipe_llm_fallbacks_total", "URLs routed to the LLM fallback"),
		LLMFailures:   counter(reg, "partspipe_llm_failures_total", "LLM fallbacks that yielded no records"),
		RowsUpserted:  counter(reg, "partspipe_rows_upserted_total", "Rows upserted into the stores"),
	}
	return m
}

// Serve exposes the /metrics endpoint on the given port in a
// background goroutine.
func (m *Metrics) Serve(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()
}

func counter(reg *prometheus.Registry, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	reg.MustRegister(c)
	return c
}
