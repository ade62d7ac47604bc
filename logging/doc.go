// Package logging provides a minimal logging interface and adapters for stylemesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the orchestrator, runner, flows and HTTP handlers use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ComponentLogger stamping component / session attributes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	base := logging.NewSlogAdapter(logging.NewSlog(&logging.Config{Level: logging.LogLevelInfo, Format: "json"}))
//	log := logging.NewComponentLogger(base, "orchestrator")
//	log.Info("orchestrator.attempt.start", "agent", "photo_analysis", "attempt", 1)
package logging
