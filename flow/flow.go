// Package flow provides the execution pipeline behind model backed agents.
//
// A flow turns a RunContext into a model request (through request
// processors), drives the model, runs any requested tools and repeats until
// the model produces a final answer.
package flow

import (
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/tool"
)

// Flow defines the interface for agent execution flows.
type Flow interface {
	// Execute runs the flow and returns a channel of events that is closed
	// once the flow terminates.
	Execute(runCtx *core.RunContext) (<-chan core.Event, error)
}

// FlowAgent is the view of an agent that flows depend on.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// IsFunctionCallingEnabled returns whether tools are offered to the model.
	IsFunctionCallingEnabled() bool

	// IsStreamingEnabled returns whether streaming responses are requested.
	IsStreamingEnabled() bool

	// GetOutputKey returns the session state key for saving responses.
	GetOutputKey() string

	// MaxHistoryMessages bounds the conversation history sent to the model.
	MaxHistoryMessages() int

	// ResponseMIMEType is the requested response format, e.g. application/json.
	ResponseMIMEType() string
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
