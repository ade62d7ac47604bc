package orchestrator

import "time"

// Recorder receives orchestration metrics.
type Recorder interface {
	// Attempt counts one provider submission.
	Attempt(role string)
	// Failure counts a failed attempt by class (see Classifier.Class).
	Failure(role, class string)
	// Fallback counts a canned reply returned instead of a model reply.
	Fallback(role string)
	// Invocation observes a finished call and its outcome.
	Invocation(role, outcome string, d time.Duration)
}

// NopRecorder discards all metrics.
type NopRecorder struct{}

// Nop returns a Recorder that does nothing.
func Nop() Recorder { return NopRecorder{} }

// Attempt does nothing.
func (NopRecorder) Attempt(string) {}

// Failure does nothing.
func (NopRecorder) Failure(string, string) {}

// Fallback does nothing.
func (NopRecorder) Fallback(string) {}

// Invocation does nothing.
func (NopRecorder) Invocation(string, string, time.Duration) {}
