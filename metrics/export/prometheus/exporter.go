package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/metrics/export/internaldefs"
)

// MetricsSource is satisfied by *credcore.Engine.
type MetricsSource interface {
	MetricsSnapshot() credcore.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *credcore.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter over any snapshot source.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the current metrics on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = p.WriteTo(w)
	})
}

// Render returns the current metrics. It returns "" while metrics are
// disabled and nothing has been dropped.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes the text exposition of the current snapshot to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	tw := &textWriter{w: w}
	for _, def := range internaldefs.Counters {
		tw.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.Histograms {
		tw.histogram(def.Name, def.Help, internaldefs.Cumulative(snap.Histograms[def.ID]))
	}
	tw.counter(internaldefs.AuditDroppedName, "Audit events that never reached the sink.", dropped)
	return tw.n, tw.err
}

// textWriter accumulates the byte count and keeps the first write error.
type textWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	n, err := fmt.Fprintf(t.w, format, args...)
	t.n += int64(n)
	t.err = err
}

func (t *textWriter) header(name, help, kind string) {
	t.printf("# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func (t *textWriter) counter(name, help string, value uint64) {
	t.header(name, help, "counter")
	t.printf("%s %d\n", name, value)
}

func (t *textWriter) histogram(name, help string, cumulative [internaldefs.BucketCount]uint64) {
	t.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		t.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	t.printf("%s_count %d\n", name, cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	t.printf("%s_sum 0\n", name)
}

var helpEscaper = strings.NewReplacer("\\", "\\\\", "\n", "\\n")

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
