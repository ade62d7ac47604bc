// Package core provides the foundational domain types, interfaces and execution
// contexts used by stylemesh. It defines the core abstractions for:
//
//   - Agents (read-only capability descriptors that run one model turn)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication records, final vs partial)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - Pluggable stores for session state and artifacts
//
// Persistence, orchestration and concrete agents live in other packages and
// depend on the small interfaces declared here.
package core
