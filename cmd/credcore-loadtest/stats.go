package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"
)

// summary describes one phase. Quantiles use the nearest-rank method.
type summary struct {
	elapsed   time.Duration
	count     int
	failures  int64
	quantiles [3]time.Duration // p50, p95, p99
}

var reportedQuantiles = [3]float64{0.50, 0.95, 0.99}

func summarize(elapsed time.Duration, samples []time.Duration, failures int64) summary {
	s := summary{elapsed: elapsed, count: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	slices.Sort(samples)
	for i, q := range reportedQuantiles {
		s.quantiles[i] = quantile(samples, q)
	}
	return s
}

func (s summary) throughput() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.count) / s.elapsed.Seconds()
}

// quantile returns the nearest-rank q-quantile of ascending samples.
func quantile(sorted []time.Duration, q float64) time.Duration {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	rank := int(q*float64(n)+0.999999) - 1
	return sorted[max(rank, 0)]
}

func writeSummaries(w io.Writer, phases map[string]summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailures\telapsed\tops/s\tp50\tp95\tp99\t")
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		s := phases[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t\n",
			name, s.count, s.failures,
			s.elapsed.Round(time.Millisecond), s.throughput(),
			s.quantiles[0].Round(time.Microsecond),
			s.quantiles[1].Round(time.Microsecond),
			s.quantiles[2].Round(time.Microsecond))
	}
	tw.Flush()
}
