package flow

import (
	"errors"
	"fmt"
	"maps"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/tool"
)

// Error codes attached to error events emitted by flows.
const (
	ErrCodeProcessor   = "PROCESSOR_ERROR"
	ErrCodeModel       = "MODEL_ERROR"
	ErrCodeUnsupported = "UNSUPPORTED"
	ErrCodeLimit       = "MODEL_CALL_LIMIT"
)

// ErrToolsUnsupported is returned when an agent with tools runs on a model
// without function calling.
var ErrToolsUnsupported = errors.New("Tool use with function calling is unsupported") //nolint:staticcheck

// BaseFlow is a single-agent flow implementing the request -> LLM -> (optional
// tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; registration order is execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the tool executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response or an error event has been
// emitted.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	if f.agent.GetLLM() == nil {
		return nil, fmt.Errorf("agent %s has no model", f.agent.GetName())
	}

	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for {
			last := f.runOnce(runCtx, eventChan)
			if last == nil || last.IsError() {
				return
			}

			// A function response needs another model turn.
			if len(last.GetFunctionResponses()) > 0 && !last.IsFinalResponse() {
				continue
			}

			if last.IsPartial() {
				runCtx.LogWarn("flow.last_event_partial", "agent", f.agent.GetName())
				return
			}

			if last.IsFinalResponse() {
				return
			}
		}
	}()

	return eventChan, nil
}

func (f *BaseFlow) emitError(runCtx *core.RunContext, eventChan chan<- core.Event, code string, err error) *core.Event {
	runCtx.LogWarn("flow.error", "agent", f.agent.GetName(), "code", code, "error", err.Error())

	ev := core.NewErrorEvent(runCtx.RunID, code, err)
	eventChan <- ev

	return &ev
}

// emit delivers ev and, for complete events, waits until the runner has persisted it.
func (f *BaseFlow) emit(runCtx *core.RunContext, eventChan chan<- core.Event, ev core.Event) error {
	select {
	case <-runCtx.Done():
		return runCtx.Err()
	case eventChan <- ev:
	}

	if ev.IsPartial() || runCtx.Resume == nil {
		return nil
	}

	return runCtx.WaitForResume()
}

func (f *BaseFlow) toolDefinitions() []model.ToolDefinition {
	if !f.agent.IsFunctionCallingEnabled() {
		return nil
	}

	tools := f.agent.GetTools()
	defs := make([]model.ToolDefinition, 0, len(tools))

	for _, t := range tools {
		defs = append(defs, tool.Definition(t))
	}

	return defs
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event. A nil return signals cancellation.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) *core.Event {
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return f.emitError(runCtx, eventChan, ErrCodeProcessor, err)
		}
	}

	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return f.emitError(runCtx, eventChan, ErrCodeProcessor, fmt.Errorf("request processor %s failed: %w", processor.Name(), err))
		}
	}

	llm := f.agent.GetLLM()

	req.Tools = f.toolDefinitions()
	if len(req.Tools) > 0 && !llm.Info().SupportsTools {
		return f.emitError(runCtx, eventChan, ErrCodeUnsupported, fmt.Errorf("%w by model %s", ErrToolsUnsupported, llm.Info().Name))
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		return f.emitError(runCtx, eventChan, ErrCodeLimit, err)
	}

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for respCh != nil || errCh != nil {
		select {
		case <-runCtx.Done():
			return nil
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				return f.emitError(runCtx, eventChan, ErrCodeModel, err)
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return f.emitError(runCtx, eventChan, ErrCodeProcessor, fmt.Errorf("response processor %s failed: %w", processor.Name(), err))
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			content := resp.Content
			ev.Content = &content
			partial := resp.Partial
			ev.Partial = &partial

			fnCalls := ev.GetFunctionCalls()

			if !resp.Partial {
				if len(fnCalls) == 0 {
					complete := true
					ev.TurnComplete = &complete
				}

				if len(runCtx.StateDelta) > 0 {
					ev.Actions.StateDelta = maps.Clone(runCtx.StateDelta)
					clear(runCtx.StateDelta)
				}
			}

			lastEvent = &ev

			if err := f.emit(runCtx, eventChan, ev); err != nil {
				return nil
			}

			if len(fnCalls) == 0 {
				continue
			}

			f.executor.Execute(runCtx, f.agent, f.agent.GetTools(), fnCalls, func(respEv core.Event) error {
				lastEvent = &respEv
				return f.emit(runCtx, eventChan, respEv)
			})
		}
	}

	return lastEvent
}
