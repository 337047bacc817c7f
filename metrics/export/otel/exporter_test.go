package otel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/credcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// stubSource serves whatever snapshot was last stored.
type stubSource struct {
	snap    atomic.Pointer[credcore.MetricsSnapshot]
	dropped atomic.Uint64
}

func (s *stubSource) set(snap credcore.MetricsSnapshot) { s.snap.Store(&snap) }

func (s *stubSource) MetricsSnapshot() credcore.MetricsSnapshot {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return credcore.MetricsSnapshot{}
}

func (s *stubSource) AuditDropped() uint64 { return s.dropped.Load() }

func newMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider.Meter("credcore-test"), reader
}

// collect flattens int64 points into "name" or "name{le}" keys.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	add := func(name string, points []metricdata.DataPoint[int64]) {
		for _, p := range points {
			key := name
			if le, ok := p.Attributes.Value("le"); ok {
				key += "{" + le.AsString() + "}"
			}
			out[key] = p.Value
		}
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				add(m.Name, data.DataPoints)
			case metricdata.Gauge[int64]:
				add(m.Name, data.DataPoints)
			default:
				t.Fatalf("metric %s has unexpected type %T", m.Name, m.Data)
			}
		}
	}
	return out
}

func TestExporterPublishesSnapshot(t *testing.T) {
	meter, reader := newMeter(t)
	src := &stubSource{}
	src.set(credcore.MetricsSnapshot{
		Counters: map[credcore.MetricID]uint64{
			credcore.MetricLoginSuccess:         3,
			credcore.MetricRefreshReuseDetected: 2,
		},
		Histograms: map[credcore.MetricID][]uint64{
			credcore.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
		},
	})
	src.dropped.Store(1)

	exp, err := NewOTelExporterFromSource(meter, src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	got := collect(t, reader)
	assert.Equal(t, int64(3), got["credcore_login_success_total"])
	assert.Equal(t, int64(2), got["credcore_refresh_reuse_detected_total"])
	assert.Equal(t, int64(0), got["credcore_logout_total"])
	assert.Equal(t, int64(1), got["credcore_audit_dropped_total"])
	assert.Equal(t, int64(1), got["credcore_validate_latency_seconds_bucket{0.005}"])
	assert.Equal(t, int64(2), got["credcore_validate_latency_seconds_bucket{0.01}"])
	assert.Equal(t, int64(8), got["credcore_validate_latency_seconds_bucket{+Inf}"])
	assert.Equal(t, int64(8), got["credcore_validate_latency_seconds_count"])
	assert.Contains(t, got, "credcore_refresh_latency_seconds_count")
	assert.Zero(t, got["credcore_refresh_latency_seconds_count"])
}

func TestExporterFollowsSourceBetweenCollections(t *testing.T) {
	meter, reader := newMeter(t)
	src := &stubSource{}
	exp, err := NewOTelExporterFromSource(meter, src)
	require.NoError(t, err)
	defer exp.Close()

	assert.Zero(t, collect(t, reader)["credcore_logout_total"])

	src.set(credcore.MetricsSnapshot{Counters: map[credcore.MetricID]uint64{credcore.MetricLogout: 5}})
	assert.Equal(t, int64(5), collect(t, reader)["credcore_logout_total"])
}

func TestExporterConstructorErrors(t *testing.T) {
	meter, _ := newMeter(t)

	_, err := NewOTelExporterFromSource(nil, &stubSource{})
	assert.ErrorIs(t, err, ErrNilMeter)
	_, err = NewOTelExporterFromSource(meter, nil)
	assert.ErrorIs(t, err, ErrNilSource)
	_, err = NewOTelExporter(meter, nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestExporterCloseStopsObserving(t *testing.T) {
	meter, reader := newMeter(t)
	src := &stubSource{}
	src.dropped.Store(4)
	exp, err := NewOTelExporterFromSource(meter, src)
	require.NoError(t, err)

	require.NoError(t, exp.Close())
	assert.NotContains(t, collect(t, reader), "credcore_audit_dropped_total")

	var nilExp *OTelExporter
	assert.NoError(t, nilExp.Close())
}

func TestExporterConcurrentCollect(t *testing.T) {
	meter, reader := newMeter(t)
	src := &stubSource{}
	exp, err := NewOTelExporterFromSource(meter, src)
	require.NoError(t, err)
	defer exp.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.set(credcore.MetricsSnapshot{Counters: map[credcore.MetricID]uint64{credcore.MetricLoginSuccess: uint64(i)}})
			var rm metricdata.ResourceMetrics
			assert.NoError(t, reader.Collect(context.Background(), &rm))
		}()
	}
	wg.Wait()
}
