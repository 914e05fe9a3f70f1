// File: pool/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Synchronized free list of Buffers with auto-expansion, an optional hard
// cap and consistent statistics.

package pool

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-mbuf/api"
	"github.com/momentics/hioload-mbuf/internal/memory"
)

// Pool hands out Buffers of a fixed nominal capacity and takes them back
// once every handle onto them has been released.
//
// Counters and the free list live under a single mutex. Backing storage is
// allocated outside of it; the slot is reserved first so the counters stay
// consistent while the allocation is in flight.
type Pool struct {
	cfg   Config
	alloc memory.Allocator

	_  cpu.CacheLinePad
	mu sync.Mutex

	free      []*storage   // LIFO
	waiters   *queue.Queue // *waiter, FIFO; only used by CapBlock pools
	abandoned int          // abandoned entries still in waiters

	allocated int
	total     int
	closed    bool

	hits      uint64
	misses    uint64
	replaced  uint64
	discarded uint64
	waits     uint64
	rejected  uint64
	_         cpu.CacheLinePad
}

// compactThreshold is the number of abandoned waiters tolerated before the
// queue is rebuilt, provided they are also the majority of it.
const compactThreshold = 32

// waiter is a blocked AllocContext call. A nil storage sent on ch means
// "a slot opened up or the pool closed, try again".
type waiter struct {
	ch        chan *storage
	abandoned bool // guarded by Pool.mu
}

var _ api.BufferPool[*Buffer] = (*Pool)(nil)

// New pre-creates initialCount buffers of bufferSize capacity, all free.
func New(initialCount, bufferSize int) (*Pool, error) {
	cfg := DefaultConfig()
	cfg.InitialCount = initialCount
	cfg.BufferSize = bufferSize
	return NewWithConfig(cfg)
}

// NewWithConfig builds a pool from cfg. Zero-valued optional fields take
// their defaults.
func NewWithConfig(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:     cfg,
		alloc:   cfg.Allocator,
		free:    make([]*storage, 0, cfg.InitialCount),
		waiters: queue.New(),
	}
	for i := 0; i < cfg.InitialCount; i++ {
		st, err := allocStorage(cfg.BufferSize, p.alloc, p)
		if err != nil {
			for _, s := range p.free {
				s.destroy()
			}
			return nil, err
		}
		st.refs.Store(0)
		st.pooled = true
		p.free = append(p.free, st)
	}
	p.total = cfg.InitialCount
	p.debugf("[pool] %s: created %d buffers of %d bytes (allocator=%s, max=%d, cap=%s, oversize=%s)",
		cfg.Name, cfg.InitialCount, cfg.BufferSize, p.alloc.Name(), cfg.MaxBuffers, cfg.CapPolicy, cfg.OversizePolicy)
	return p, nil
}

// Config returns the effective configuration.
func (p *Pool) Config() Config { return p.cfg }

// BufferSize returns the capacity of buffers the pool creates.
func (p *Pool) BufferSize() int { return p.cfg.BufferSize }

// Alloc returns a buffer with Len() == 0. A CapBlock pool at its cap waits
// without a deadline; use AllocContext to bound the wait.
func (p *Pool) Alloc() (*Buffer, error) {
	return p.AllocContext(context.Background())
}

// AllocContext is Alloc with a context bounding the wait on a CapBlock pool.
func (p *Pool) AllocContext(ctx context.Context) (*Buffer, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, api.ErrPoolClosed
		}
		if n := len(p.free); n > 0 {
			st := p.free[n-1]
			p.free[n-1] = nil
			p.free = p.free[:n-1]
			st.pooled = false
			p.allocated++
			p.hits++
			p.mu.Unlock()
			return p.handle(st), nil
		}
		if p.cfg.MaxBuffers == 0 || p.total < p.cfg.MaxBuffers {
			p.total++
			p.allocated++
			p.misses++
			p.mu.Unlock()
			return p.create()
		}
		if p.cfg.CapPolicy == CapFailFast {
			p.rejected++
			p.mu.Unlock()
			return nil, api.NewError(api.ErrCodeCapacityExceeded, "pool: no free buffers").
				WithContext("pool", p.cfg.Name).
				WithContext("max", p.cfg.MaxBuffers)
		}
		w := &waiter{ch: make(chan *storage, 1)}
		p.waiters.Add(w)
		p.waits++
		p.mu.Unlock()

		select {
		case st := <-w.ch:
			if st != nil {
				return p.handle(st), nil
			}
		case <-ctx.Done():
			p.abandon(w)
			return nil, ctx.Err()
		}
	}
}

// create allocates storage for a slot already reserved in the counters.
func (p *Pool) create() (*Buffer, error) {
	st, err := allocStorage(p.cfg.BufferSize, p.alloc, p)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.allocated--
		p.wakeLocked()
		p.mu.Unlock()
		return nil, err
	}
	return &Buffer{st: st}, nil
}

// handle issues a fresh handle onto recycled storage.
func (p *Pool) handle(st *storage) *Buffer {
	st.refs.Store(1)
	return &Buffer{st: st}
}

// abandon withdraws a waiter whose context ended. Anything already handed
// to it is passed on.
func (p *Pool) abandon(w *waiter) {
	p.mu.Lock()
	select {
	case st := <-w.ch:
		if st == nil {
			p.wakeLocked()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
		p.recycle(st)
	default:
		w.abandoned = true
		p.abandoned++
		if p.abandoned >= compactThreshold && 2*p.abandoned > p.waiters.Length() {
			p.compactWaitersLocked()
		}
		p.mu.Unlock()
	}
}

// compactWaitersLocked drops abandoned entries, keeping FIFO order.
func (p *Pool) compactWaitersLocked() {
	live := queue.New()
	for i := 0; i < p.waiters.Length(); i++ {
		if w := p.waiters.Get(i).(*waiter); !w.abandoned {
			live.Add(w)
		}
	}
	p.waiters = live
	p.abandoned = 0
}

// nextWaiterLocked pops the oldest live waiter, or nil.
func (p *Pool) nextWaiterLocked() *waiter {
	for p.waiters.Length() > 0 {
		w := p.waiters.Remove().(*waiter)
		if !w.abandoned {
			return w
		}
		p.abandoned--
	}
	return nil
}

// wakeLocked tells one waiter to retry after a slot was given up.
func (p *Pool) wakeLocked() {
	if w := p.nextWaiterLocked(); w != nil {
		w.ch <- nil
	}
}

// Free returns b to the pool. The storage is requeued once every handle
// sharing it has been released. Freeing a buffer that belongs to another
// pool panics; a standalone buffer is simply released.
func (p *Pool) Free(b *Buffer) {
	if b == nil {
		return
	}
	if owner := b.live().owner; owner != nil && owner != p {
		panic("pool: buffer freed to a pool that did not allocate it")
	}
	b.Release()
}

// recycle takes back storage whose last handle was released.
func (p *Pool) recycle(st *storage) {
	replaced := false
	if p.cfg.OversizePolicy == OversizeReplace && len(st.region) > p.cfg.MaxRetainedCapacity {
		oldCap := len(st.region)
		region, err := p.alloc.Alloc(p.cfg.BufferSize)
		p.alloc.Free(st.region)
		st.region = nil
		if err != nil {
			p.mu.Lock()
			p.allocated--
			p.total--
			p.discarded++
			p.wakeLocked()
			p.mu.Unlock()
			p.logf("[pool] %s: dropped oversized buffer (%d bytes), replacement failed: %v", p.cfg.Name, oldCap, err)
			return
		}
		st.region = region[:cap(region)]
		replaced = true
		p.debugf("[pool] %s: replaced oversized buffer (%d -> %d bytes)", p.cfg.Name, oldCap, len(st.region))
	}

	p.mu.Lock()
	if st.pooled {
		p.mu.Unlock()
		panic("pool: buffer returned to the free list twice")
	}
	if replaced {
		p.replaced++
	}
	if p.closed {
		p.allocated--
		p.total--
		p.discarded++
		p.mu.Unlock()
		st.destroy()
		return
	}
	if w := p.nextWaiterLocked(); w != nil {
		p.hits++
		w.ch <- st
		p.mu.Unlock()
		return
	}
	st.pooled = true
	p.free = append(p.free, st)
	p.allocated--
	p.mu.Unlock()
}

// Stats returns a consistent snapshot of the counters.
func (p *Pool) Stats() api.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.PoolStats{
		Allocated:    p.allocated,
		Free:         len(p.free),
		TotalCreated: p.total,
		Hits:         p.hits,
		Misses:       p.misses,
		Replaced:     p.replaced,
		Discarded:    p.discarded,
		Waits:        p.waits,
		Rejected:     p.rejected,
	}
}

// Close destroys every free buffer and fails later allocations with
// api.ErrPoolClosed. Buffers still out are destroyed as they come back.
// Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	free := p.free
	p.free = nil
	p.total -= len(free)
	for p.waiters.Length() > 0 {
		w := p.waiters.Remove().(*waiter)
		if !w.abandoned {
			w.ch <- nil
		}
	}
	p.abandoned = 0
	outstanding := p.allocated
	p.mu.Unlock()

	for _, st := range free {
		st.destroy()
	}
	p.logf("[pool] %s: closed, destroyed %d free buffers, %d still allocated", p.cfg.Name, len(free), outstanding)
	return nil
}

func (p *Pool) logf(format string, args ...any) {
	p.cfg.Logger.Printf(format, args...)
}

func (p *Pool) debugf(format string, args ...any) {
	if p.cfg.Debug {
		p.cfg.Logger.Printf(format, args...)
	}
}
