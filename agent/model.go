package agent

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/flow"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description      string
	Role             string
	Instruction      Instruction
	EnableStreaming  bool
	OutputKey        string
	ResponseMIMEType string
	// MaxHistoryMessages bounds the session history sent to the model; 0 means unbounded.
	MaxHistoryMessages int
	Tools              []tool.Tool
}

// ModelAgent is an agent backed by a language model. A run resolves the
// instruction, sends the conversation (including images) to the model,
// executes any requested tools and emits the events of the exchange.
//
// Tools must be registered before the agent is first run.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	outputKey          string
	responseMIMEType   string
	maxHistoryMessages int
}

// NewModelAgent creates a new model-based agent.
//
// Defaults: role equal to name, a generic instruction, no streaming,
// 20 history messages and no tools.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Role:               name,
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxHistoryMessages: 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	base := NewBaseAgent(name)
	base.SetRole(opts.Role)

	if opts.Description != "" {
		base.SetDescription(opts.Description)
	}

	a := &ModelAgent{
		BaseAgent:          base,
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              make(map[string]tool.Tool, len(opts.Tools)),
		enableStreaming:    opts.EnableStreaming,
		outputKey:          opts.OutputKey,
		responseMIMEType:   opts.ResponseMIMEType,
		maxHistoryMessages: opts.MaxHistoryMessages,
	}

	a.RegisterTools(opts.Tools...)

	return a
}

// RegisterTool adds a tool to the agent's capability set.
//
// Example:
//
//	agent.RegisterTool(tool.NewWebSearch())
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// HasTools reports whether any tool is registered.
func (a *ModelAgent) HasTools() bool { return len(a.tools) > 0 }

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the sorted names of all registered tools.
func (a *ModelAgent) ListTools() []string {
	return slices.Sorted(maps.Keys(a.tools))
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tools.
func (a *ModelAgent) GetTools() map[string]tool.Tool { return maps.Clone(a.tools) }

// IsFunctionCallingEnabled reports whether tools are offered to the model.
func (a *ModelAgent) IsFunctionCallingEnabled() bool { return a.HasTools() }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// GetOutputKey returns the session state key for saving responses.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the maximum number of history messages sent to the model.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResponseMIMEType returns the requested response format.
func (a *ModelAgent) ResponseMIMEType() string { return a.responseMIMEType }

// ResolveInstructions produces the system prompt.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run executes the agent through a SingleAgentFlow and forwards the flow's
// events to runCtx.Emit. Error events are not forwarded: the first one is
// returned as Run's error once the flow has finished.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	eventChan, err := flow.NewSingleAgentFlow(a).Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("flow execution failed: %w", err)
	}

	var runErr error

	for event := range eventChan {
		if event.IsError() {
			if runErr == nil {
				runErr = event.Err()
			}
			continue
		}

		if runCtx.Emit == nil {
			continue
		}

		select {
		case runCtx.Emit <- event:
			runCtx.LogDebug(
				"agent.event.forward",
				"agent", a.Name(),
				"event_id", event.ID,
				"partial", event.IsPartial(),
				"fn_calls", len(event.GetFunctionCalls()),
			)
		case <-runCtx.Done():
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", runCtx.Err())
			return runCtx.Err()
		}
	}

	if runErr != nil {
		runCtx.LogWarn("agent.run.error", "agent", a.Name(), "error", runErr.Error())
		return runErr
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}
