// Command credcore-perfcheck compares two `go test -bench` outputs and exits
// non-zero when a tracked benchmark got slower than the allowed ratio.
//
//	go test -run '^$' -bench . -count 5 ./ ./refresh > new.txt
//	credcore-perfcheck -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
)

const defaultThreshold = 0.30

// series identifies one measured unit of one benchmark.
type series struct {
	bench string
	unit  string
}

// tracked is kept sorted by bench then unit so reports are stable.
var tracked = []series{
	{"BenchmarkRefresh", "ns/op"},
	{"BenchmarkRotateMemory", "allocs/op"},
	{"BenchmarkRotateMemory", "ns/op"},
	{"BenchmarkValidateAccess", "allocs/op"},
	{"BenchmarkValidateAccess", "ns/op"},
}

type samples map[series][]float64

type verdict struct {
	series
	base, cand float64
	ratio      float64
	problem    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("credcore-perfcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baselinePath := fs.String("baseline", "", "benchmark output of the reference build")
	candidatePath := fs.String("candidate", "", "benchmark output of the build under test")
	threshold := fs.Float64("threshold", defaultThreshold, "largest allowed slowdown ratio (0.30 means +30%)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *baselinePath == "" || *candidatePath == "" || *threshold < 0 {
		fmt.Fprintln(stderr, "-baseline and -candidate are required and -threshold must be >= 0")
		return 2
	}

	base, err := readSamples(*baselinePath)
	if err != nil {
		fmt.Fprintf(stderr, "baseline: %v\n", err)
		return 1
	}
	cand, err := readSamples(*candidatePath)
	if err != nil {
		fmt.Fprintf(stderr, "candidate: %v\n", err)
		return 1
	}

	verdicts := judge(base, cand, *threshold)
	report(stdout, verdicts)
	if failed := problems(verdicts); len(failed) > 0 {
		fmt.Fprintf(stderr, "%d tracked series failed:\n", len(failed))
		for _, p := range failed {
			fmt.Fprintf(stderr, "  %s\n", p)
		}
		return 1
	}
	return 0
}

// judge compares medians for every tracked series. A series missing from
// either side is a failure, as is any slowdown beyond threshold.
func judge(base, cand samples, threshold float64) []verdict {
	out := make([]verdict, 0, len(tracked))
	for _, s := range tracked {
		v := verdict{series: s}
		b, c := base[s], cand[s]
		switch {
		case len(b) == 0 || len(c) == 0:
			v.problem = "no samples"
		default:
			v.base, v.cand = median(b), median(c)
			switch {
			case v.base == 0 && v.cand == 0:
			case v.base <= 0:
				v.problem = "baseline median is not positive"
			default:
				v.ratio = v.cand/v.base - 1
				if v.ratio > threshold {
					v.problem = fmt.Sprintf("slower by %.1f%%, limit %.1f%%", v.ratio*100, threshold*100)
				}
			}
		}
		out = append(out, v)
	}
	return out
}

func problems(verdicts []verdict) []string {
	var out []string
	for _, v := range verdicts {
		if v.problem != "" {
			out = append(out, fmt.Sprintf("%s %s: %s", v.bench, v.unit, v.problem))
		}
	}
	return out
}

func report(w io.Writer, verdicts []verdict) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "benchmark\tunit\tbaseline\tcandidate\tchange")
	for _, v := range verdicts {
		if v.problem == "no samples" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\n", v.bench, v.unit)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%+.1f%%\n", v.bench, v.unit, v.base, v.cand, v.ratio*100)
	}
	tw.Flush()
}

func readSamples(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseSamples(f)
}

// parseSamples reads benchmark result lines of the form
//
//	BenchmarkName-8  1000  1234 ns/op  56 B/op  7 allocs/op
//
// and keeps the values of tracked series.
func parseSamples(r io.Reader) (samples, error) {
	want := make(map[series]bool, len(tracked))
	for _, s := range tracked {
		want[s] = true
	}

	out := samples{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		bench := trimProcs(fields[0])
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			s := series{bench: bench, unit: fields[i+1]}
			if !want[s] {
				continue
			}
			if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
				out[s] = append(out[s], v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Join(errors.New("read benchmark output"), err)
	}
	return out, nil
}

// trimProcs drops the -GOMAXPROCS suffix go test appends to benchmark names.
func trimProcs(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
