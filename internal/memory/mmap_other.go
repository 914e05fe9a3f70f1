//go:build !unix

// File: internal/memory/mmap_other.go
// Author: momentics <momentics@gmail.com>
//
// Fallback for platforms without anonymous mmap support.

package memory

import "os"

// PageSize returns the platform allocation granularity.
func PageSize() int { return os.Getpagesize() }

// NewMmap falls back to the heap allocator.
func NewMmap() Allocator { return heap }
