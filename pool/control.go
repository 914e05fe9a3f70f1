// File: pool/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Export of pool statistics into the control layer.

package pool

import (
	"github.com/momentics/hioload-mbuf/control"
)

// MetricPrefix returns the key prefix under which the pool publishes.
func (p *Pool) MetricPrefix() string { return "pool." + p.cfg.Name + "." }

// Publish writes the current statistics into reg as one consistent group.
func (p *Pool) Publish(reg *control.MetricsRegistry) {
	s := p.Stats()
	prefix := p.MetricPrefix()
	reg.SetMany(map[string]any{
		prefix + "allocated":     s.Allocated,
		prefix + "free":          s.Free,
		prefix + "total_created": s.TotalCreated,
		prefix + "hits":          s.Hits,
		prefix + "misses":        s.Misses,
		prefix + "replaced":      s.Replaced,
		prefix + "discarded":     s.Discarded,
		prefix + "waits":         s.Waits,
		prefix + "rejected":      s.Rejected,
		prefix + "buffer_size":   p.cfg.BufferSize,
	})
}

// RegisterProbes exposes the live statistics and configuration as probes.
func (p *Pool) RegisterProbes(dp *control.DebugProbes) {
	prefix := p.MetricPrefix()
	dp.RegisterProbe(prefix+"stats", func() any { return p.Stats() })
	dp.RegisterProbe(prefix+"config", func() any {
		return map[string]any{
			"buffer_size":           p.cfg.BufferSize,
			"max_buffers":           p.cfg.MaxBuffers,
			"cap_policy":            p.cfg.CapPolicy.String(),
			"oversize_policy":       p.cfg.OversizePolicy.String(),
			"max_retained_capacity": p.cfg.MaxRetainedCapacity,
			"allocator":             p.alloc.Name(),
		}
	})
}
