//go:build unix

// File: internal/memory/mmap_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Anonymous private mappings, rounded to the system page size. Regions live
// outside the Go heap and must be returned with Free.

package memory

import (
	"golang.org/x/sys/unix"
)

// PageSize returns the platform allocation granularity.
func PageSize() int { return unix.Getpagesize() }

type mmapAllocator struct {
	pageSize int
}

// NewMmap returns an allocator backed by anonymous mmap regions.
func NewMmap() Allocator {
	return &mmapAllocator{pageSize: unix.Getpagesize()}
}

func (m *mmapAllocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, allocError("negative size", size, nil)
	}
	if size == 0 {
		return []byte{}, nil
	}
	length := RoundUp(size, m.pageSize)
	data, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, allocError("mmap failed", length, err)
	}
	return data, nil
}

func (m *mmapAllocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	// Munmap wants the exact slice returned by Mmap.
	_ = unix.Munmap(b[:cap(b)])
}

func (m *mmapAllocator) Name() string { return "mmap" }

func (m *mmapAllocator) Granularity() int { return m.pageSize }
