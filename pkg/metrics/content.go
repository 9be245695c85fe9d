package metrics

import "time"

// ContentMetrics observes payload store operations.
type ContentMetrics interface {
	// RecordOperation records a content store call ("write", "read",
	// "delete", "size", "exists", "list", "delete_batch").
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordBytes counts bytes written to or read from the store.
	RecordBytes(direction string, bytes int64)
}

// NewNoopContentMetrics returns a ContentMetrics that discards everything.
func NewNoopContentMetrics() ContentMetrics {
	return noopContentMetrics{}
}

type noopContentMetrics struct{}

func (noopContentMetrics) RecordOperation(string, time.Duration, error) {}
func (noopContentMetrics) RecordBytes(string, int64)                    {}
