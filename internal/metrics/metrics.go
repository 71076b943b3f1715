// Package metrics exposes counters and latency histograms in Prometheus
// text exposition format without pulling in client_golang.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry holds all metrics for the process.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Default is the process-wide registry.
var Default = NewRegistry()

func (r *Registry) Uptime() time.Duration { return time.Since(r.startTime) }

type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Counter returns or registers the counter for name+labels. Labels use raw
// Prometheus syntax, e.g. `route="llm_required"`.
func (r *Registry) Counter(name, help, labels string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := name + "{" + labels + "}"
	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: labels}
	r.counters[key] = c
	return c
}

func (r *Registry) Gauge(name, help, labels string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := name + "{" + labels + "}"
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[key] = g
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, buckets: hb}
	r.histograms[name] = h
	return h
}

// Handler renders the registry in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, r.render())
	}
}

func (r *Registry) render() string {
	r.mu.Lock()
	counters := sortedKeys(r.counters)
	gauges := sortedKeys(r.gauges)
	histograms := sortedKeys(r.histograms)
	r.mu.Unlock()

	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP lunabot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE lunabot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "lunabot_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

	helpWritten := make(map[string]bool)
	for _, key := range counters {
		r.mu.Lock()
		c := r.counters[key]
		r.mu.Unlock()
		if !helpWritten[c.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
			helpWritten[c.name] = true
		}
		writeSample(&sb, c.name, c.labels, c.Value())
	}

	helpWritten = make(map[string]bool)
	for _, key := range gauges {
		r.mu.Lock()
		g := r.gauges[key]
		r.mu.Unlock()
		if !helpWritten[g.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
			helpWritten[g.name] = true
		}
		writeSample(&sb, g.name, g.labels, g.Value())
	}

	for _, name := range histograms {
		r.mu.Lock()
		h := r.histograms[name]
		r.mu.Unlock()
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", h.name, le, b.count)
		}
		fmt.Fprintf(&sb, "%s_count %d\n%s_sum %f\n", h.name, h.count, h.name, h.sum)
		h.mu.Unlock()
	}

	return sb.String()
}

func writeSample(sb *strings.Builder, name, labels string, v int64) {
	if labels != "" {
		fmt.Fprintf(sb, "%s{%s} %d\n", name, labels, v)
	} else {
		fmt.Fprintf(sb, "%s %d\n", name, v)
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Metrics used across the pipeline.

func MessagesRouted(route string) *Counter {
	return Default.Counter("lunabot_messages_routed_total",
		"Messages classified, by route", fmt.Sprintf("route=%q", route))
}

func RepliesSent() *Counter {
	return Default.Counter("lunabot_replies_sent_total", "Replies sent to chat", "")
}

func ProviderFailures(provider string) *Counter {
	return Default.Counter("lunabot_provider_failures_total",
		"Provider call failures, by provider", fmt.Sprintf("provider=%q", provider))
}

func BreakerOpens(provider string) *Counter {
	return Default.Counter("lunabot_breaker_opens_total",
		"Circuit breaker trips, by provider", fmt.Sprintf("provider=%q", provider))
}

func RateLimited() *Counter {
	return Default.Counter("lunabot_rate_limited_total", "Messages dropped by the per-user rate limit", "")
}

func LurkerInterjections() *Counter {
	return Default.Counter("lunabot_lurker_interjections_total", "Unprompted lurker replies sent", "")
}

func GenerationLatency() *Histogram {
	return Default.Histogram("lunabot_generation_latency_seconds",
		"End-to-end LLM generation latency in seconds",
		[]float64{0.25, 0.5, 1, 2, 5, 10, 30})
}
