// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-mbuf.
// Implements growable, reference-counted byte buffers and a synchronized pool
// that recycles them under high churn.
//
// A Buffer is a handle. Share creates more handles onto the same storage;
// the storage is recycled (pooled) or freed (standalone) exactly once, when
// the last handle is released. A Pool keeps a LIFO free list and the
// counters Allocated, Free and TotalCreated under one mutex, with
// Allocated + Free == TotalCreated in every Stats snapshot.
//
// See buffer.go, pool.go and config.go for implementation details.
package pool
