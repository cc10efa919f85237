package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Profiler aggregates scan counters across runs.
type Profiler struct {
	scans     atomic.Int64
	decoded   atomic.Int64
	reference atomic.Int64
	totalNs   atomic.Int64

	mu     sync.Mutex
	byKind map[string]int64
}

// ProfileSnapshot is a point-in-time copy of the profiler counters.
type ProfileSnapshot struct {
	Scans        int64            `json:"scans"`
	Decoded      int64            `json:"decoded"`
	ViaReference int64            `json:"via_reference"`
	Failures     map[string]int64 `json:"failures,omitempty"`
	AverageScan  time.Duration    `json:"average_scan_ns"`
}

// Record adds one finished scan.
func (p *Profiler) Record(res *ScanResult) {
	if res == nil {
		return
	}
	p.scans.Add(1)
	p.totalNs.Add(res.TotalNs)
	switch {
	case res.Error != nil:
		p.mu.Lock()
		if p.byKind == nil {
			p.byKind = map[string]int64{}
		}
		p.byKind[res.Error.Kind]++
		p.mu.Unlock()
	case res.Source == SourceReference:
		p.decoded.Add(1)
		p.reference.Add(1)
	default:
		p.decoded.Add(1)
	}
}

// Snapshot returns the cumulative counters.
func (p *Profiler) Snapshot() ProfileSnapshot {
	s := ProfileSnapshot{
		Scans:        p.scans.Load(),
		Decoded:      p.decoded.Load(),
		ViaReference: p.reference.Load(),
	}
	if s.Scans > 0 {
		s.AverageScan = time.Duration(p.totalNs.Load() / s.Scans)
	}
	p.mu.Lock()
	if len(p.byKind) > 0 {
		s.Failures = make(map[string]int64, len(p.byKind))
		for k, v := range p.byKind {
			s.Failures[k] = v
		}
	}
	p.mu.Unlock()
	return s
}
