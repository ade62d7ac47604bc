// Package agent contains the model backed agent used for every stylemesh
// role (photo analysis, outfit recommendation, trend research, newsletter
// formatting) plus the instruction helpers that produce its system prompt.
//
// Agents are capability descriptors: they carry a name, a role, a model and
// optional tools, and hold no per-run state. A run happens inside a
// *core.RunContext supplied by the runner, which persists the emitted events.
package agent
