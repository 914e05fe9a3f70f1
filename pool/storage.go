// File: pool/storage.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared backing region behind one or more Buffer handles.

package pool

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-mbuf/internal/memory"
)

// storage is the reference-counted region aliased by Buffer handles.
// refs is touched from many goroutines; the padding keeps it off the cache
// line of the fields the owning handle mutates.
type storage struct {
	refs atomic.Int32
	_    cpu.CacheLinePad

	region []byte // len == cap == capacity
	alloc  memory.Allocator
	owner  *Pool // nil for buffers created outside a pool

	// pooled is true while the storage sits on owner's free list.
	// Guarded by owner.mu.
	pooled bool
}

func newStorage(region []byte, alloc memory.Allocator, owner *Pool) *storage {
	st := &storage{region: region[:cap(region)], alloc: alloc, owner: owner}
	st.refs.Store(1)
	return st
}

func (s *storage) retain() {
	if s.refs.Add(1) <= 1 {
		panic("pool: share of a released buffer")
	}
}

// release drops one reference. Cleanup runs exactly once, on the 1 -> 0
// transition.
func (s *storage) release() {
	n := s.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("pool: buffer released more times than it was shared")
	}
	if s.owner != nil {
		s.owner.recycle(s)
		return
	}
	s.destroy()
}

func (s *storage) destroy() {
	region := s.region
	s.region = nil
	s.alloc.Free(region)
}
