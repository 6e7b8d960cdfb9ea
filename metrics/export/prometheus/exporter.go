package prometheus

import (
	"fmt"
	"net/http"
	"strings"

	rotauth "github.com/rotauth/rotauth"
	"github.com/rotauth/rotauth/metrics/export/internaldefs"
)

// Source is the engine surface the exporter reads from.
type Source interface {
	MetricsSnapshot() rotauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format.
// It implements http.Handler, so it can be mounted directly on a mux.
type Exporter struct {
	source Source
}

// New creates an exporter reading from engine.
func New(engine *rotauth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewFromSource is like [New] but reads from any [Source].
func NewFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// ServeHTTP writes the current metrics to the response.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write([]byte(e.Render()))
}

// Handler returns the exporter as an http.Handler.
func (e *Exporter) Handler() http.Handler {
	return e
}

// Render produces the full exposition text. Output is deterministic: series
// appear in definition order, the audit-drop counter last.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		counterSeries(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		histogramSeries(&b, def.Name, def.Help, internaldefs.CumulativeBuckets(raw))
	}
	counterSeries(&b, "rotauth_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

	return b.String()
}

func header(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func counterSeries(b *strings.Builder, name, help string, value uint64) {
	header(b, name, help, "counter")
	fmt.Fprintf(b, "%s %d\n", name, value)
}

func histogramSeries(b *strings.Builder, name, help string, cumulative [8]uint64) {
	header(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(b, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}

	// The core snapshot carries bucket counts only; expose a zero sum so the
	// series set stays shaped like a native histogram.
	fmt.Fprintf(b, "%s_count %d\n", name, cumulative[len(cumulative)-1])
	fmt.Fprintf(b, "%s_sum 0\n", name)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}
