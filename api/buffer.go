// Package api
// Author: momentics
//
// Zero-copy, reference-counted byte buffers and the pools that recycle them.
//
// A buffer exposes its valid bytes without copying. The view stays valid
// until the buffer grows or its last handle is released.

package api

import "io"

// Buffer describes a growable, reference-counted memory region with a
// read/write cursor.
type Buffer interface {
	io.Reader
	io.Writer

	// Bytes returns an immutable view of the valid data [0, Len()).
	Bytes() []byte

	// Append writes p at the tail, growing storage when needed.
	Append(p []byte) (int, error)

	// Len is the number of valid bytes; Cap the size of the backing storage.
	Len() int
	Cap() int

	// Release drops this handle. The storage is recycled or freed when the
	// last handle goes away. After Release, the handle must not be used.
	Release()
}

// BufferPool abstracts a synchronized free list of buffers.
type BufferPool[B Buffer] interface {
	// Alloc returns a ready-to-use buffer with Len() == 0.
	Alloc() (B, error)

	// Free hands a buffer back; the handle must not be used afterwards.
	Free(b B)

	// Stats exposes a consistent snapshot of the pool counters.
	Stats() PoolStats
}

// PoolStats aggregates buffer accounting. Allocated + Free == TotalCreated
// holds for every snapshot taken by Stats.
type PoolStats struct {
	Allocated    int // buffers currently handed out
	Free         int // buffers ready on the free list
	TotalCreated int // buffers the pool currently accounts for

	Hits      uint64 // allocations served from the free list or a handoff
	Misses    uint64 // allocations that created a new buffer
	Replaced  uint64 // oversized buffers swapped for a nominal one on return
	Discarded uint64 // buffers dropped from the books
	Waits     uint64 // allocations that had to wait on a capped pool
	Rejected  uint64 // allocations refused by a capped pool
}

// Consistent reports whether the snapshot satisfies the pool invariant.
func (s PoolStats) Consistent() bool {
	return s.Allocated >= 0 && s.Free >= 0 && s.Allocated+s.Free == s.TotalCreated
}
