// Command credcore-loadtest drives refresh token lookups and rotations against
// the Redis store and reports latency percentiles. A fraction of rotations
// replay an already used token to exercise reuse detection.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/credcore/redisstore"
	"github.com/MrEthical07/credcore/refresh"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type chainState struct {
	subject  string
	current  string
	previous string
	mu       sync.Mutex
}

func main() {
	var (
		subjects    = flag.Int("subjects", 10000, "number of token chains to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (lookup + rotate)")
		replayRate  = flag.Float64("replay-rate", 0.01, "fraction of rotations that replay a used token")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "cclt", "redis key prefix")
	)
	flag.Parse()

	if *subjects <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "subjects, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *replayRate < 0 || *replayRate > 1 {
		fmt.Fprintln(os.Stderr, "replay-rate must be within [0, 1]")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	rotator, err := refresh.NewRotator(redisstore.NewStore(client, redisstore.Options{Prefix: *prefix}), refresh.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "rotator: %v\n", err)
		os.Exit(1)
	}

	states := make([]chainState, *subjects)
	fmt.Printf("seeding %d token chains...\n", *subjects)
	startSeed := time.Now()
	for i := range states {
		subject := fmt.Sprintf("user-%d", i)
		rec, err := rotator.IssueInitial(ctx, subject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		states[i].subject = subject
		states[i].current = rec.Value
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookupStats := runLookupPhase(ctx, rotator, states, *ops, *concurrency)
	rotateStats, outcomes := runRotatePhase(ctx, rotator, states, *ops, *concurrency, *replayRate)

	fmt.Println("---- results ----")
	writeSummaries(os.Stdout, map[string]summary{"lookup": lookupStats, "rotate": rotateStats})
	printOutcomes(os.Stdout, outcomes)
}

// runPhase spreads ops calls of op across concurrency workers. op reports
// whether the call behaved as expected; its latency is recorded either way.
func runPhase(ops, concurrency int, op func(r *rand.Rand) bool) summary {
	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		failures atomic.Int64
	)
	perWorker := make([][]time.Duration, concurrency)

	start := time.Now()
	for w := range perWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*7919))
			samples := make([]time.Duration, 0, ops/concurrency+1)
			for next.Add(1) <= int64(ops) {
				t0 := time.Now()
				ok := op(r)
				samples = append(samples, time.Since(t0))
				if !ok {
					failures.Add(1)
				}
			}
			perWorker[w] = samples
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	var all []time.Duration
	for _, samples := range perWorker {
		all = append(all, samples...)
	}
	return summarize(elapsed, all, failures.Load())
}

func runLookupPhase(ctx context.Context, rotator *refresh.Rotator, states []chainState, ops, concurrency int) summary {
	return runPhase(ops, concurrency, func(r *rand.Rand) bool {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		value := state.current
		state.mu.Unlock()

		_, err := rotator.Lookup(ctx, value)
		return err == nil
	})
}

// outcomeCounts is indexed by refresh.OutcomeKind.
type outcomeCounts [refresh.OutcomeUnavailable + 1]atomic.Int64

// runRotatePhase rotates random chains. With probability replayRate a chain
// presents its previous token instead, which must be caught as reuse.
func runRotatePhase(ctx context.Context, rotator *refresh.Rotator, states []chainState, ops, concurrency int, replayRate float64) (summary, *outcomeCounts) {
	var outcomes outcomeCounts
	s := runPhase(ops, concurrency, func(r *rand.Rand) bool {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()

		replay := state.previous != "" && r.Float64() < replayRate
		presented := state.current
		if replay {
			presented = state.previous
		}
		out := rotator.Rotate(ctx, presented, state.subject)
		outcomes[out.Kind].Add(1)

		return advance(ctx, rotator, state, out) == nil && expected(out, replay)
	})
	return s, &outcomes
}

// expected reports whether out is the result a correct store produces for a
// fresh (replay false) or replayed token.
func expected(out refresh.Outcome, replay bool) bool {
	if replay {
		return out.Kind == refresh.OutcomeReuseDetected
	}
	return out.Kind == refresh.OutcomeRotated
}

// advance moves state to the token the client would hold next. A chain whose
// tokens were revoked starts over with a fresh login.
func advance(ctx context.Context, rotator *refresh.Rotator, state *chainState, out refresh.Outcome) error {
	if out.Kind == refresh.OutcomeRotated {
		state.previous = state.current
		state.current = out.Next.Value
		return nil
	}
	rec, err := rotator.IssueInitial(ctx, state.subject)
	if err != nil {
		return err
	}
	state.previous = ""
	state.current = rec.Value
	return nil
}

func printOutcomes(w io.Writer, o *outcomeCounts) {
	fmt.Fprint(w, "outcomes:")
	for kind := range o {
		if n := o[kind].Load(); n > 0 {
			fmt.Fprintf(w, " %s=%d", refresh.OutcomeKind(kind), n)
		}
	}
	fmt.Fprintln(w)
}
