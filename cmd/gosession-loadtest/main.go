// Command gosession-loadtest drives the engine's hot paths concurrently and
// prints latency percentiles per phase.
//
// Without --redis-addr (or REDIS_ADDR) it runs against an embedded
// miniredis; --memory selects the in-process store instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

type options struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
	memory      bool
	encoding    string
}

func main() {
	var opts options
	flagSet := pflag.NewFlagSet("gosession-loadtest", pflag.ContinueOnError)
	flagSet.IntVar(&opts.users, "users", 10000, "number of distinct users to mint tokens for")
	flagSet.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	flagSet.IntVar(&opts.ops, "ops", 200000, "operations per phase")
	flagSet.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flagSet.BoolVar(&opts.memory, "memory", false, "use the in-process store")
	flagSet.StringVar(&opts.encoding, "encoding", "json", "cache encoding: json or cbor")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx := context.Background()

	cfg := goSession.DefaultConfig()
	cfg.Token.Secret = []byte("loadtest-secret-loadtest-secret-0")
	cfg.Cache.Encoding = opts.encoding
	cfg.Activity.DropIfFull = true

	builder := goSession.New().WithConfig(cfg)
	cleanup := func() {}
	if !opts.memory {
		addr := opts.redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return fmt.Errorf("failed to start miniredis: %w", err)
			}
			addr = mr.Addr()
			cleanup = mr.Close
			fmt.Printf("using miniredis at %s\n", addr)
		} else {
			fmt.Printf("using redis at %s\n", addr)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}, MaxRetries: -1})
		prev := cleanup
		cleanup = func() {
			_ = client.Close()
			prev()
		}
		builder = builder.WithRedis(client)
	}
	defer cleanup()

	engine, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() { _ = engine.Close() }()
	fmt.Printf("backend: %s\n", engine.Backend().Name)

	tokens := make([]string, opts.users)
	fmt.Printf("minting %d tokens...\n", opts.users)
	startSeed := time.Now()
	for i := range tokens {
		tokens[i], err = engine.MintToken("user-"+strconv.Itoa(i), time.Hour)
		if err != nil {
			return fmt.Errorf("mint failed: %w", err)
		}
	}
	fmt.Printf("minted in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(opts, func(r *rand.Rand, _ int) error {
		_, err := engine.ValidateToken(ctx, tokens[r.Intn(len(tokens))])
		return err
	})

	limit := runPhase(opts, func(r *rand.Rand, _ int) error {
		_, err := engine.RateLimitCheck(ctx, "lt:"+strconv.Itoa(r.Intn(opts.users)), 100, time.Minute)
		return err
	})

	type entry struct {
		User  string `json:"user" cbor:"user"`
		Count int    `json:"count" cbor:"count"`
	}
	cache := runPhase(opts, func(r *rand.Rand, i int) error {
		key := "lt:" + strconv.Itoa(r.Intn(opts.users))
		if i%4 == 0 {
			return engine.CachePut(ctx, key, entry{User: key, Count: i}, time.Minute)
		}
		var out entry
		_, err := engine.CacheGet(ctx, key, &out)
		return err
	})

	presence := runPhase(opts, func(r *rand.Rand, _ int) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validate)
	printStats("ratelimit", limit)
	printStats("cache", cache)
	printStats("authenticate", presence)
	if dropped := engine.ActivityDropped(); dropped > 0 {
		fmt.Printf("activity entries dropped: %d\n", dropped)
	}
	return nil
}

// runPhase spreads opts.ops calls of op over opts.concurrency workers.
func runPhase(opts options, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, opts.ops/opts.concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					break
				}
				t0 := time.Now()
				if err := op(r, i); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
	return samples[(len(samples)-1)*p/100]
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
