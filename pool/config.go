// File: pool/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool configuration, defaults and validation.

package pool

import (
	"log"

	"github.com/momentics/hioload-mbuf/api"
	"github.com/momentics/hioload-mbuf/internal/memory"
)

// CapPolicy selects what Alloc does when a capped pool is exhausted.
type CapPolicy int

const (
	// CapFailFast returns api.ErrCapacityExceeded immediately.
	CapFailFast CapPolicy = iota
	// CapBlock waits until a buffer is freed or the context is done.
	CapBlock
)

func (c CapPolicy) String() string {
	switch c {
	case CapFailFast:
		return "fail-fast"
	case CapBlock:
		return "block"
	default:
		return "unknown"
	}
}

// OversizePolicy selects what Free does with a buffer that grew past
// Config.MaxRetainedCapacity.
type OversizePolicy int

const (
	// OversizeReplace drops the grown storage and requeues a fresh
	// BufferSize one in its slot.
	OversizeReplace OversizePolicy = iota
	// OversizeKeep requeues the buffer with its grown capacity.
	OversizeKeep
)

func (o OversizePolicy) String() string {
	switch o {
	case OversizeReplace:
		return "replace"
	case OversizeKeep:
		return "keep"
	default:
		return "unknown"
	}
}

// Config holds parameters immutable for the life of a pool.
type Config struct {
	Name                string           // Label used in logs and published metrics
	InitialCount        int              // Buffers created up front onto the free list
	BufferSize          int              // Capacity of every buffer the pool creates
	MaxBuffers          int              // Hard cap on buffers created; 0 means unlimited
	CapPolicy           CapPolicy        // Behavior when MaxBuffers is reached
	OversizePolicy      OversizePolicy   // Behavior for grown buffers on Free
	MaxRetainedCapacity int              // Largest capacity requeued as-is under OversizeReplace
	Allocator           memory.Allocator // Backing storage source; heap when nil
	Logger              *log.Logger      // Destination for pool logs; log.Default() when nil
	Debug               bool             // Log per-event debug lines
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Name:                "default",
		InitialCount:        0,
		BufferSize:          2048,
		MaxBuffers:          0,
		CapPolicy:           CapFailFast,
		OversizePolicy:      OversizeReplace,
		MaxRetainedCapacity: 0, // 4 * BufferSize
	}
}

// withDefaults fills zero-valued optional fields.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxRetainedCapacity == 0 {
		c.MaxRetainedCapacity = 4 * c.BufferSize
	}
	if c.Allocator == nil {
		c.Allocator = memory.Heap()
	}
	// Regions come back rounded to the allocator granularity; a nominal
	// buffer must never count as oversized.
	c.MaxRetainedCapacity = memory.RoundUp(c.MaxRetainedCapacity, c.Allocator.Granularity())
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	invalid := func(field string, value any) error {
		return api.NewError(api.ErrCodeInvalidArgument, "pool: invalid config").
			WithContext("field", field).
			WithContext("value", value)
	}
	switch {
	case c.BufferSize < 0 || c.BufferSize > MaxBufferSize:
		return invalid("BufferSize", c.BufferSize)
	case c.InitialCount < 0:
		return invalid("InitialCount", c.InitialCount)
	case c.MaxBuffers < 0:
		return invalid("MaxBuffers", c.MaxBuffers)
	case c.MaxBuffers > 0 && c.InitialCount > c.MaxBuffers:
		return invalid("InitialCount", c.InitialCount)
	case c.CapPolicy != CapFailFast && c.CapPolicy != CapBlock:
		return invalid("CapPolicy", c.CapPolicy)
	case c.OversizePolicy != OversizeReplace && c.OversizePolicy != OversizeKeep:
		return invalid("OversizePolicy", c.OversizePolicy)
	case c.MaxRetainedCapacity != 0 && c.MaxRetainedCapacity < c.BufferSize:
		return invalid("MaxRetainedCapacity", c.MaxRetainedCapacity)
	}
	return nil
}
