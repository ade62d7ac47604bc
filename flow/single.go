package flow

// SingleAgentFlow implements the execution flow of a standalone agent. It
// wires the default processors for instruction resolution and content
// assembly and runs tool calls through the parallel function executor.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a new single-agent flow.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewResponseFormatProcessor())
	baseFlow.AddResponseProcessor(NewOutputKeyProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
