// Package session houses concrete implementations of core.SessionStore.
//
// The orchestrator creates one short-lived session per invocation attempt
// and deletes it once the attempt is settled, so stores here must report
// unknown ids with core.ErrSessionNotFound instead of creating them lazily.
package session
