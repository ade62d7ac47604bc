// Package runner executes an agent inside a session.
//
// A Runner appends the user content to the session, runs the agent in a
// goroutine, persists every complete event (applying its state delta) and
// streams the events to the caller. The agent's flow waits for each event to
// be persisted before starting the next model turn, so a tool response is
// always visible to the following request.
package runner
