package core

import "context"

// Runner defines the minimal orchestration contract for executing an agent
// within a conversational session. It provides:
//   - Asynchronous execution via Run (streaming events + terminal error channel)
//   - Cooperative cancellation through Cancel
//
// Semantics & Guarantees:
//   - Event Ordering: Events emitted within a single run are delivered
//     in the order produced by the underlying agent pipeline.
//   - Channel Lifecycle: The returned events channel is closed after the
//     run completes (success, error, or cancellation). The error channel
//     carries at most one terminal error and is closed after the events channel.
//   - Cancellation: Context cancellation or explicit Cancel(runID)
//     stops further event emission and triggers cleanup.
//   - Partial Events: Implementations MAY emit partial events; consumers should
//     rely on IsPartial() to decide persistence or display strategy.
type Runner interface {
	// Run initiates an asynchronous agent execution bound to sessionID using the
	// provided userContent as the starting input. The immediate error return
	// covers startup failures (e.g. ErrSessionNotFound).
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Cancel requests cooperative termination of an in-flight run.
	Cancel(runID string) error
}
