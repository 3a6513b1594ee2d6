package models

import "errors"

// Error taxonomy for the orchestration layer. Components wrap these with
// context via fmt.Errorf("...: %w", ...); callers classify with errors.Is.
var (
	// ErrProtocol marks a backend response missing a required field.
	// Never retried.
	ErrProtocol = errors.New("malformed backend response")

	// ErrUnrecognizedStatus marks a status string outside the known set.
	// Never retried, never ignored.
	ErrUnrecognizedStatus = errors.New("unrecognized task status")

	// ErrTimeout is the synthetic client-side failure raised when the
	// polling budget elapses without a terminal status.
	ErrTimeout = errors.New("research task timed out")

	// ErrFetchFailed marks a non-success web-resource fetch. The
	// aggregator yields empty state, never partial data.
	ErrFetchFailed = errors.New("web resource fetch failed")

	// ErrSummaryFetchFailed marks a per-URL summary failure. Non-fatal:
	// the failure text is stored visibly in place of the summary.
	ErrSummaryFetchFailed = errors.New("url summary fetch failed")
)
