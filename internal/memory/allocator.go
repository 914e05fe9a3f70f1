// File: internal/memory/allocator.go
// Package memory provides the backing-storage allocators used by buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral part. Concrete mmap allocators are selected through
// build-tagged files.

package memory

import (
	"github.com/momentics/hioload-mbuf/api"
)

// Allocator obtains and returns raw byte regions.
// Alloc must return a slice with len == cap >= size, where the size is
// rounded up to Granularity.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free([]byte)
	Name() string
	Granularity() int
}

type heapAllocator struct{}

var heap Allocator = heapAllocator{}

// Heap returns the allocator backed by the Go runtime. Free is a no-op;
// the garbage collector reclaims regions once no view references them.
func Heap() Allocator { return heap }

func (heapAllocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, allocError("negative size", size, nil)
	}
	return make([]byte, size), nil
}

func (heapAllocator) Free([]byte) {}

func (heapAllocator) Name() string { return "heap" }

func (heapAllocator) Granularity() int { return 1 }

// RoundUp rounds n up to a multiple of granularity (a power of two or any
// positive value). Granularity <= 1 returns n unchanged.
func RoundUp(n, granularity int) int {
	if granularity <= 1 || n <= 0 {
		return n
	}
	return ((n + granularity - 1) / granularity) * granularity
}

func allocError(msg string, size int, cause error) error {
	e := api.NewError(api.ErrCodeAllocation, "memory: "+msg).WithContext("size", size)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
