// File: cmd/mbuf-stress/main.go
// Package main
// Stress driver for the buffer pool: many goroutines alloc, mutate, share
// and free buffers for a fixed duration, then the pool accounting is checked.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mbuf/api"
	"github.com/momentics/hioload-mbuf/control"
	"github.com/momentics/hioload-mbuf/internal/memory"
	"github.com/momentics/hioload-mbuf/pool"
)

type options struct {
	workers  int
	duration time.Duration
	initial  int
	size     int
	max      int
	block    bool
	keep     bool
	mmap     bool
	bigEvery int
	debug    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("mbuf-stress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&o.workers, "workers", 8, "number of concurrent goroutines")
	fs.DurationVar(&o.duration, "duration", 2*time.Second, "how long to run")
	fs.IntVar(&o.initial, "initial", 64, "buffers created up front (lowered to -max when not set)")
	fs.IntVar(&o.size, "size", 4096, "nominal buffer size in bytes")
	fs.IntVar(&o.max, "max", 0, "hard cap on buffers (0 = unlimited)")
	fs.BoolVar(&o.block, "block", false, "block instead of failing when the cap is reached")
	fs.BoolVar(&o.keep, "keep-oversized", false, "keep grown buffers instead of replacing them")
	fs.BoolVar(&o.mmap, "mmap", false, "back buffers with anonymous mmap regions")
	fs.IntVar(&o.bigEvery, "big-every", 100, "every N-th iteration appends 16x the buffer size (0 = never)")
	fs.BoolVar(&o.debug, "debug", false, "log pool debug events")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	initialSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "initial" {
			initialSet = true
		}
	})
	if o.workers <= 0 {
		return o, fmt.Errorf("workers must be positive: %w", api.ErrInvalidArgument)
	}
	if o.size <= 0 {
		return o, fmt.Errorf("size must be positive: %w", api.ErrInvalidArgument)
	}
	if o.max > 0 && o.initial > o.max {
		// The default pre-fill follows a smaller cap; an explicit one must fit.
		if initialSet {
			return o, fmt.Errorf("initial (%d) exceeds max (%d): %w", o.initial, o.max, api.ErrInvalidArgument)
		}
		o.initial = o.max
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	logger := log.New(stderr, "", log.LstdFlags)

	cfg := pool.DefaultConfig()
	cfg.Name = "stress"
	cfg.InitialCount = o.initial
	cfg.BufferSize = o.size
	cfg.MaxBuffers = o.max
	cfg.Logger = logger
	cfg.Debug = o.debug
	if o.block {
		cfg.CapPolicy = pool.CapBlock
	}
	if o.keep {
		cfg.OversizePolicy = pool.OversizeKeep
	}
	if o.mmap {
		cfg.Allocator = memory.NewMmap()
	}

	p, err := pool.NewWithConfig(cfg)
	if err != nil {
		logger.Printf("[stress] pool init failure: %v", err)
		return 1
	}
	defer p.Close()

	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	p.RegisterProbes(probes)

	var ops, shares, failures atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), o.duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(id) + 1))
			payload := make([]byte, 16*o.size)
			for iter := 1; ctx.Err() == nil; iter++ {
				buf, err := p.AllocContext(ctx)
				if err != nil {
					if ctx.Err() == nil {
						failures.Add(1)
					}
					continue
				}
				n := 1 + rng.Intn(o.size)
				if o.bigEvery > 0 && iter%o.bigEvery == 0 {
					n = len(payload)
				}
				if _, err := buf.Append(payload[:n]); err != nil {
					failures.Add(1)
				}
				if rng.Intn(4) == 0 {
					shared := buf.Share()
					shares.Add(1)
					done := make(chan struct{})
					go func() {
						defer close(done)
						_ = shared.Len()
						shared.Release()
					}()
					<-done
				}
				p.Free(buf)
				ops.Add(1)
			}
		}(i)
	}
	wg.Wait()

	p.Publish(metrics)
	if o.debug {
		for name, v := range probes.DumpState() {
			logger.Printf("[stress] probe %s: %+v", name, v)
		}
	}
	s := p.Stats()
	fmt.Fprintf(stdout, "ops=%d shares=%d failures=%d\n", ops.Load(), shares.Load(), failures.Load())
	for _, k := range metrics.Keys(p.MetricPrefix()) {
		v, _ := metrics.Get(k)
		fmt.Fprintf(stdout, "%s=%v\n", k, v)
	}
	if !s.Consistent() || s.Allocated != 0 {
		logger.Printf("[stress] inconsistent pool stats: %+v", s)
		return 1
	}
	return 0
}
