package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockModelImpl for testing LLM functionality
type MockModelImpl struct{ mock.Mock }

func (m *MockModelImpl) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	if err := args.Error(1); err != nil {
		errCh <- err
	} else if cr, ok := args.Get(0).(*model.Response); ok {
		respCh <- *cr
	}

	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *MockModelImpl) Info() model.Info {
	args := m.Called()
	return args.Get(0).(model.Info)
}

func textResponse(text string) *model.Response {
	return &model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

func newEmitRunContext(emit chan core.Event) *core.RunContext {
	return core.NewRunContext(
		context.Background(), "s1", "run-1",
		core.AgentInfo{Name: "stylist", Role: "outfit_recommendation"},
		core.NewUserContent("I need an outfit for a wedding"),
		func(o *core.RunContextOptions) { o.Emit = emit },
	)
}

func TestModelAgent_NewAgent(t *testing.T) {
	mockLLM := &MockModelImpl{}
	agent := NewModelAgent("stylist", mockLLM, func(o *ModelAgentOptions) {
		o.Role = "outfit_recommendation"
		o.Description = "Recommends outfits"
		o.ResponseMIMEType = "application/json"
	})

	assert.Equal(t, mockLLM, agent.GetLLM())
	assert.Equal(t, "stylist", agent.Name())
	assert.Equal(t, "outfit_recommendation", agent.Role())
	assert.Equal(t, "Recommends outfits", agent.Description())
	assert.Equal(t, "application/json", agent.ResponseMIMEType())
	assert.False(t, agent.HasTools())
	assert.False(t, agent.IsFunctionCallingEnabled())
	assert.Equal(t, 20, agent.MaxHistoryMessages())
}

func TestModelAgent_Tools(t *testing.T) {
	agent := NewModelAgent("researcher", &MockModelImpl{}, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{tool.NewWebSearch()}
	})

	assert.True(t, agent.HasTools())
	assert.True(t, agent.HasTool(tool.WebSearchName))
	assert.Equal(t, []string{tool.WebSearchName}, agent.ListTools())

	tools := agent.GetTools()
	delete(tools, tool.WebSearchName)
	assert.True(t, agent.HasTool(tool.WebSearchName))
}

func TestModelAgent_RunEmitsFinalEvent(t *testing.T) {
	mockLLM := &MockModelImpl{}
	// tool support is only consulted for agents with tools
	mockLLM.On("Info").Return(model.Info{Name: "m", SupportsTools: true}).Maybe()
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "Be stylish." && len(req.Contents) == 2
	})).Return(textResponse("A navy suit with brown oxfords."), nil)

	agent := NewModelAgent("stylist", mockLLM, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Be stylish.")
	})

	emit := make(chan core.Event, 10)
	require.NoError(t, agent.Run(newEmitRunContext(emit)))
	close(emit)

	var events []core.Event
	for ev := range emit {
		events = append(events, ev)
	}

	require.Len(t, events, 1)
	assert.True(t, events[0].IsFinalResponse())
	assert.Equal(t, "A navy suit with brown oxfords.", events[0].Text())
	mockLLM.AssertExpectations(t)
}

func TestModelAgent_RunWithToolsChecksSupport(t *testing.T) {
	mockLLM := &MockModelImpl{}
	mockLLM.On("Info").Return(model.Info{Name: "gemini", SupportsTools: true})
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.HasWebSearch()
	})).Return(textResponse("Quilted jackets are everywhere this autumn."), nil)

	agent := NewModelAgent("researcher", mockLLM, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{tool.NewWebSearch()}
	})

	emit := make(chan core.Event, 10)
	require.NoError(t, agent.Run(newEmitRunContext(emit)))
	close(emit)

	var final []core.Event
	for ev := range emit {
		if ev.IsFinalResponse() {
			final = append(final, ev)
		}
	}

	require.Len(t, final, 1)
	assert.Equal(t, "Quilted jackets are everywhere this autumn.", final[0].Text())
	mockLLM.AssertExpectations(t)
}

func TestModelAgent_RunReturnsModelError(t *testing.T) {
	mockLLM := &MockModelImpl{}
	mockLLM.On("Info").Return(model.Info{Name: "m"}).Maybe()
	mockLLM.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("INVALID_ARGUMENT: image too large"))

	agent := NewModelAgent("stylist", mockLLM)

	emit := make(chan core.Event, 10)
	err := agent.Run(newEmitRunContext(emit))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_ARGUMENT")
	assert.Empty(t, emit)
}

func TestModelAgent_RunWithoutToolSupport(t *testing.T) {
	mockLLM := &MockModelImpl{}
	mockLLM.On("Info").Return(model.Info{Name: "plain", SupportsTools: false})

	agent := NewModelAgent("researcher", mockLLM, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{tool.NewWebSearch()}
	})

	err := agent.Run(newEmitRunContext(make(chan core.Event, 1)))

	require.Error(t, err)
	assert.Equal(t, "Tool use with function calling is unsupported by model plain", err.Error())
	mockLLM.AssertExpectations(t)
	mockLLM.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}
