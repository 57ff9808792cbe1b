package observability

import (
	"sync/atomic"
	"time"
)

// SweepStats keeps in-process counters for the reset token sweeper; the
// worker health endpoint reports them without scraping prometheus.
type SweepStats struct {
	runs     atomic.Uint64
	failures atomic.Uint64
	removed  atomic.Int64

	lastRunUnixNano atomic.Int64
	lastDuration    atomic.Int64
}

func NewSweepStats() *SweepStats {
	return &SweepStats{}
}

func (s *SweepStats) Observe(at time.Time, d time.Duration, removed int64, err error) {
	s.runs.Add(1)
	s.lastRunUnixNano.Store(at.UnixNano())
	s.lastDuration.Store(int64(d))

	if err != nil {
		s.failures.Add(1)
		return
	}
	s.removed.Add(removed)
}

type SweepSnapshot struct {
	Runs         uint64        `json:"runs"`
	Failures     uint64        `json:"failures"`
	Removed      int64         `json:"removed"`
	LastRun      *time.Time    `json:"lastRun,omitempty"`
	LastDuration time.Duration `json:"lastDurationNs"`
}

func (s *SweepStats) Snapshot() SweepSnapshot {
	snap := SweepSnapshot{
		Runs:         s.runs.Load(),
		Failures:     s.failures.Load(),
		Removed:      s.removed.Load(),
		LastDuration: time.Duration(s.lastDuration.Load()),
	}

	if ns := s.lastRunUnixNano.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		snap.LastRun = &t
	}

	return snap
}
