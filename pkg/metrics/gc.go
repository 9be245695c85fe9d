package metrics

import "time"

// GCStats summarizes one orphan collection run.
type GCStats struct {
	Scanned  int
	Orphaned int
	Deleted  int
	Failed   int
}

// GCMetrics observes the orphan payload collector.
type GCMetrics interface {
	RecordRun(stats GCStats, duration time.Duration, err error)
}

// NewNoopGCMetrics returns a GCMetrics that discards everything.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

type noopGCMetrics struct{}

func (noopGCMetrics) RecordRun(GCStats, time.Duration, error) {}
