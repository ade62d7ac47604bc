package core

// Agent defines the contract every stylemesh agent implements.
//
// An agent is a read-only capability descriptor (name, role, optional tools)
// plus a Run method that drives one turn inside a RunContext and emits
// events through it. The same agent value may be run by many concurrent
// invocations; implementations must not keep per-run state on the receiver.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Return a non-nil error when the underlying model or flow fails
type Agent interface {
	Name() string
	Description() string
	// Role is the key used to look up a fallback reply when every attempt fails.
	Role() string
	// HasTools reports whether the agent exposes any tool to its model.
	HasTools() bool
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
type AgentInfo struct{ Name, Role string }

// InfoOf extracts the AgentInfo of an agent.
func InfoOf(a Agent) AgentInfo { return AgentInfo{Name: a.Name(), Role: a.Role()} }
