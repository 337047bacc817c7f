package metrics

import (
	"slices"
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRehash
	MetricRefreshSuccess
	MetricRefreshInvalid
	MetricRefreshExpired
	MetricRefreshReuseDetected
	MetricTokensRevokedOnReuse
	MetricLogout
	MetricStorageUnavailable
	MetricAccessValidateSuccess
	MetricAccessValidateFailure
	MetricValidateLatency
	MetricRefreshLatency
	MetricIDCount
)

// bucketBounds are the inclusive upper edges of the finite latency buckets.
// One more bucket past the last edge collects everything slower.
var bucketBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// HistogramBucketCount is the number of latency buckets, +Inf included.
const HistogramBucketCount = len(bucketBounds) + 1

// counter sits alone on its cache line so hot counters do not share one.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

type histogram [HistogramBucketCount]atomic.Uint64

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds atomic counters and latency histograms. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	enabled bool
	latency bool
	counts  [MetricIDCount]counter
	// latencies is indexed by histogramSlot.
	latencies [2]histogram
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatency,
	}
}

func histogramSlot(id MetricID) (int, bool) {
	switch id {
	case MetricValidateLatency:
		return 0, true
	case MetricRefreshLatency:
		return 1, true
	}
	return 0, false
}

// IsHistogram reports whether id records latency buckets instead of a count.
func IsHistogram(id MetricID) bool {
	_, ok := histogramSlot(id)
	return ok
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) { m.Add(id, 1) }

// Add increases counter id by n. Histogram ids and unknown ids are ignored.
func (m *Metrics) Add(id MetricID, n uint64) {
	if !m.Enabled() || n == 0 || id >= MetricIDCount || IsHistogram(id) {
		return
	}
	m.counts[id].Add(n)
}

// Observe records d in histogram id when latency recording is on.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	slot, ok := histogramSlot(id)
	if !ok || !m.LatencyEnabled() {
		return
	}
	m.latencies[slot][bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counts[id].Load()
}

// Snapshot copies every counter, plus the histograms when latency recording
// is on. A disabled recorder returns empty maps.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		slot, isHist := histogramSlot(id)
		switch {
		case !isHist:
			s.Counters[id] = m.counts[id].Load()
		case m.latency:
			buckets := make([]uint64, HistogramBucketCount)
			for i := range buckets {
				buckets[i] = m.latencies[slot][i].Load()
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	i, _ := slices.BinarySearch(bucketBounds[:], d)
	return i
}
