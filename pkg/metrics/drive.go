package metrics

import "time"

// DriveMetrics observes the hierarchy and sharing engines.
//
// Operation names are snake_case verbs: "create_node", "upload", "rename",
// "move", "delete", "grant", "revoke", ...
type DriveMetrics interface {
	// RecordOperation records a completed engine operation and its outcome.
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordQuotaRejection counts a write refused with ErrQuotaExceeded.
	RecordQuotaRejection()

	// RecordPayloadBytes counts payload bytes moved in direction
	// ("upload" or "download").
	RecordPayloadBytes(direction string, bytes int64)

	// RecordPayloadDeleteFailure counts a payload that could not be removed
	// after its metadata was deleted. Such payloads are left for the GC.
	RecordPayloadDeleteFailure()
}

// NewNoopDriveMetrics returns a DriveMetrics that discards everything.
func NewNoopDriveMetrics() DriveMetrics {
	return noopDriveMetrics{}
}

type noopDriveMetrics struct{}

func (noopDriveMetrics) RecordOperation(string, time.Duration, error) {}
func (noopDriveMetrics) RecordQuotaRejection()                        {}
func (noopDriveMetrics) RecordPayloadBytes(string, int64)             {}
func (noopDriveMetrics) RecordPayloadDeleteFailure()                  {}
