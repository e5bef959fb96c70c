// Package telemetry keeps in-process counters, gauges and request latency
// histograms and serves them in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

const labelSep = "\x1f"

type histogram struct {
	mu      sync.Mutex
	buckets []int64 // non-cumulative, one per boundary
	count   int64
	sum     float64
}

func (h *histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range durationBuckets {
		if v <= b {
			h.buckets[i]++
			return
		}
	}
}

func (h *histogram) snapshot() (cum []int64, count int64, sum float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum = make([]int64, len(h.buckets))
	var running int64
	for i, c := range h.buckets {
		running += c
		cum[i] = running
	}
	return cum, h.count, h.sum
}

// Counter is a monotonically increasing count split by label values. A nil
// Counter ignores Inc, so callers need no metrics wiring in tests.
type Counter struct {
	name   string
	help   string
	labels []string

	mu     sync.RWMutex
	values map[string]*int64
}

// Inc adds one to the series for the given label values, which must match the
// label names the counter was registered with.
func (c *Counter) Inc(labelValues ...string) {
	if c == nil {
		return
	}
	if len(labelValues) != len(c.labels) {
		panic(fmt.Sprintf("telemetry: counter %s wants %d labels, got %d", c.name, len(c.labels), len(labelValues)))
	}
	key := strings.Join(labelValues, labelSep)

	c.mu.RLock()
	p, ok := c.values[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if p, ok = c.values[key]; !ok {
			p = new(int64)
			c.values[key] = p
		}
		c.mu.Unlock()
	}
	atomic.AddInt64(p, 1)
}

// Value returns the current count for the label values.
func (c *Counter) Value(labelValues ...string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	p, ok := c.values[strings.Join(labelValues, labelSep)]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

type gaugeFunc struct {
	name string
	help string
	fn   func() float64
}

// Metrics is the registry for one process.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	order    []string
	gauges   []gaugeFunc

	active   int64
	histMu   sync.RWMutex
	requests map[string]*histogram // method, route, status
}

func New() *Metrics {
	return &Metrics{
		counters: make(map[string]*Counter),
		requests: make(map[string]*histogram),
	}
}

// Counter registers a counter, or returns the existing one with that name.
func (m *Metrics) Counter(name, help string, labels ...string) *Counter {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: labels, values: make(map[string]*int64)}
	m.counters[name] = c
	m.order = append(m.order, name)
	return c
}

// GaugeFunc registers a gauge whose value is read at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges = append(m.gauges, gaugeFunc{name: name, help: help, fn: fn})
}

// Middleware records the latency of every request by method, route pattern
// and status code, plus the number of requests in flight.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.active, 1)
			defer atomic.AddInt64(&m.active, -1)
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			key := strings.Join([]string{c.Request().Method, route, strconv.Itoa(c.Response().Status)}, labelSep)
			m.requestHistogram(key).observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) requestHistogram(key string) *histogram {
	m.histMu.RLock()
	h, ok := m.requests[key]
	m.histMu.RUnlock()
	if ok {
		return h
	}
	m.histMu.Lock()
	defer m.histMu.Unlock()
	if h, ok = m.requests[key]; !ok {
		h = &histogram{buckets: make([]int64, len(durationBuckets))}
		m.requests[key] = h
	}
	return h
}

// Handler serves every registered metric at /metrics.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, m.Render())
	}
}

// Render writes the Prometheus text format. Series are sorted so output is
// stable between scrapes.
func (m *Metrics) Render() string {
	var b strings.Builder

	b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
	b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
	m.histMu.RLock()
	keys := sortedKeys(m.requests)
	hists := make([]*histogram, len(keys))
	for i, k := range keys {
		hists[i] = m.requests[k]
	}
	m.histMu.RUnlock()
	for i, key := range keys {
		parts := strings.Split(key, labelSep)
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
		writeHistogram(&b, "http_server_request_duration_seconds", labels, hists[i])
	}
	b.WriteByte('\n')

	b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
	b.WriteString("# TYPE http_server_active_requests gauge\n")
	fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&m.active))

	m.mu.RLock()
	names := append([]string(nil), m.order...)
	gauges := append([]gaugeFunc(nil), m.gauges...)
	m.mu.RUnlock()

	for _, name := range names {
		m.mu.RLock()
		c := m.counters[name]
		m.mu.RUnlock()
		writeCounter(&b, c)
	}
	for _, g := range gauges {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %s\n\n", g.name, g.help, g.name, g.name, formatFloat(g.fn()))
	}
	return b.String()
}

func writeCounter(b *strings.Builder, c *Counter) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)

	c.mu.RLock()
	keys := sortedKeys(c.values)
	vals := make([]int64, len(keys))
	for i, k := range keys {
		vals[i] = atomic.LoadInt64(c.values[k])
	}
	c.mu.RUnlock()

	if len(c.labels) == 0 {
		var v int64
		if len(vals) == 1 {
			v = vals[0]
		}
		fmt.Fprintf(b, "%s %d\n\n", c.name, v)
		return
	}
	for i, key := range keys {
		parts := strings.Split(key, labelSep)
		pairs := make([]string, len(parts))
		for j, p := range parts {
			pairs[j] = fmt.Sprintf("%s=%q", c.labels[j], p)
		}
		fmt.Fprintf(b, "%s{%s} %d\n", c.name, strings.Join(pairs, ","), vals[i])
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum, count, sum := h.snapshot()
	for i, bound := range durationBuckets {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, bound, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, count)
	fmt.Fprintf(b, "%s_sum{%s} %s\n", name, labels, formatFloat(sum))
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, count)
}

func formatFloat(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
