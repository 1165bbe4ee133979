package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
)

func main() {
	var (
		identities  = flag.Int("identities", 10000, "number of identities to enroll")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (hit + miss)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "bio", "template key prefix")
		length      = flag.Int("length", 128, "embedding vector length")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and ops must be > 0")
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

	cfg := biometric.DefaultConfig()
	cfg.Schema.Length = *length
	cfg.Store.RedisPrefix = *prefix

	engine, err := biometric.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("enrolling %d identities...\n", *identities)
	startSeed := time.Now()
	for i := 0; i < *identities; i++ {
		sample := biometric.Sample{Vector: vectorFor(i, *length), Quality: 0.9}
		if _, err := engine.Enroll(ctx, identityFor(i), sample); err != nil {
			fmt.Fprintf(os.Stderr, "enroll failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("enrolled in %s\n", time.Since(startSeed).Round(time.Millisecond))

	hitStats := runHitPhase(ctx, engine, *identities, *length, *ops, *concurrency)
	missStats := runMissPhase(ctx, engine, *length, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("verify-hit", hitStats)
	printStats("verify-miss", missStats)
}

// runHitPhase verifies enrolled identities with their own enrollment
// vectors; anything but an ACCEPT counts as a failure.
func runHitPhase(ctx context.Context, engine *biometric.Engine, identities, length, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(identities)
				sample := biometric.Sample{Vector: vectorFor(idx, length), Quality: 0.9}
				t0 := time.Now()
				res, err := engine.Verify(ctx, identityFor(idx), sample)
				d := time.Since(t0)
				if err != nil || res.Decision != biometric.DecisionAccept {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runMissPhase verifies identities that were never enrolled, measuring the
// no-enrollment rejection path.
func runMissPhase(ctx context.Context, engine *biometric.Engine, length, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				identity := fmt.Sprintf("ghost-%d", r.Intn(1<<20))
				sample := biometric.Sample{Vector: vectorFor(i, length), Quality: 0.9}
				t0 := time.Now()
				res, err := engine.Verify(ctx, identity, sample)
				d := time.Since(t0)
				if err != nil || res.Reason != biometric.ReasonNoEnrollment {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func identityFor(i int) string {
	return fmt.Sprintf("emp-%d", i)
}

// vectorFor returns a deterministic pseudo-random embedding for identity i,
// so the verify phase can reproduce each enrollment vector without storing
// them all.
func vectorFor(i, length int) []float32 {
	r := rand.New(rand.NewSource(int64(i)*2654435761 + 97))
	vec := make([]float32, length)
	for j := range vec {
		vec[j] = float32(r.NormFloat64())
	}
	return vec
}
