// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for buffer pools.
//
// Provides concurrent-safe state handling primitives including:
//   - A metrics registry pools publish their counters into
//   - Named debug probes evaluated on demand
package control
