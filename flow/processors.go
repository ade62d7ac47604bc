package flow

import (
	"fmt"

	"github.com/hupe1980/stylemesh/core"
	internalutil "github.com/hupe1980/stylemesh/internal/util"
	"github.com/hupe1980/stylemesh/model"
)

// InstructionsProcessor handles system prompt and instruction processing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest resolves the agent instruction and renders it against the
// session state.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	if runCtx.Session == nil {
		req.Instructions = instructions
		return nil
	}

	req.Instructions, err = internalutil.RenderTemplate(instructions, runCtx.Session.StateSnapshot())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return nil
}

// ContentsProcessor assembles the system prompt and conversation history.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds the conversation to the request. Without a session
// only the run's user content (including any image) is sent.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content
	if req.Instructions != "" {
		contents = append(contents, core.Content{
			Role:  "system",
			Parts: []core.Part{core.TextPart{Text: req.Instructions}},
		})
	}

	var history []core.Content

	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		if limit := agent.MaxHistoryMessages(); limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				history = append(history, *ev.Content)
			}
		}
	}

	if len(history) == 0 && len(runCtx.UserContent.Parts) > 0 {
		history = append(history, runCtx.UserContent)
	}

	req.Contents = append(contents, history...)

	return nil
}

// ResponseFormatProcessor copies the agent's response MIME type and
// streaming preference into the request.
type ResponseFormatProcessor struct{}

// NewResponseFormatProcessor creates a new response format processor.
func NewResponseFormatProcessor() *ResponseFormatProcessor { return &ResponseFormatProcessor{} }

// Name returns the processor's identifier.
func (p *ResponseFormatProcessor) Name() string { return "response_format" }

// ProcessRequest implements RequestProcessor.
func (p *ResponseFormatProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	req.ResponseMIMEType = agent.ResponseMIMEType()
	req.Stream = agent.IsStreamingEnabled()

	return nil
}

// OutputKeyProcessor stores the final answer in session state under the
// agent's output key.
type OutputKeyProcessor struct{}

// NewOutputKeyProcessor creates a new output key processor.
func NewOutputKeyProcessor() *OutputKeyProcessor { return &OutputKeyProcessor{} }

// Name returns the processor's identifier.
func (p *OutputKeyProcessor) Name() string { return "output_key" }

// ProcessResponse implements ResponseProcessor.
func (p *OutputKeyProcessor) ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error {
	key := agent.GetOutputKey()
	if key == "" || resp.Partial {
		return nil
	}

	if text := model.ContentText(resp.Content); text != "" {
		runCtx.SetState(key, text)
	}

	return nil
}
