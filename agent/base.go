package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/stylemesh/core"
)

// BaseAgent bundles identity (name, description, role) and the Start/Stop
// lifecycle hooks shared by concrete agents. Embed it and supply Run to
// satisfy core.Agent.
//
// A BaseAgent holds no per-run state: one value serves any number of
// concurrent runs.
type BaseAgent struct {
	name        string
	description string
	role        string
}

// NewBaseAgent constructs a BaseAgent. The role defaults to the name.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
		role:        name,
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Role returns the fallback role key of the agent.
func (b *BaseAgent) Role() string { return b.role }

// SetRole updates the fallback role key.
func (b *BaseAgent) SetRole(role string) { b.role = role }

// HasTools reports false; agents with tools override it.
func (b *BaseAgent) HasTools() bool { return false }

// Start validates the run context before Run is called.
func (b *BaseAgent) Start(runCtx *core.RunContext) error {
	if runCtx == nil || runCtx.Context == nil {
		return errors.New("agent started without run context")
	}

	if err := runCtx.Err(); err != nil {
		return err
	}

	runCtx.LogDebug("agent.start", "agent", b.name, "run", runCtx.RunID)

	return nil
}

// Stop is called once Run returned.
func (b *BaseAgent) Stop(runCtx *core.RunContext) error {
	if runCtx == nil {
		return errors.New("agent stopped without run context")
	}

	runCtx.LogDebug("agent.stop", "agent", b.name, "run", runCtx.RunID)

	return nil
}
