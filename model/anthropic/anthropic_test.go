package anthropic

import (
	"testing"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages_ToolResultFollowsToolUse(t *testing.T) {
	contents := []core.Content{
		core.NewUserContent("what is trending?"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "lookup", Arguments: `{"q":"fall"}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "lookup", Response: "trench coats"}}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestBuildUserContent_Image(t *testing.T) {
	content := buildUserContent([]core.Part{
		core.TextPart{Text: "describe"},
		core.NewImagePart([]byte{1, 2, 3}, "image/png"),
	})

	require.Len(t, content, 2)
	assert.NotNil(t, content[0].OfText)
	assert.NotNil(t, content[1].OfImage)
}

func TestBuildParams_InstructionsAndTools(t *testing.T) {
	m := NewModelFromClient(nil)

	params := m.buildParams(model.Request{
		Instructions: "be brief",
		Contents:     []core.Content{core.NewUserContent("hi")},
		Tools: []model.ToolDefinition{
			{Type: model.ToolTypeWebSearch, Function: model.FunctionDefinition{Name: "web_search"}},
			{Type: model.ToolTypeFunction, Function: model.FunctionDefinition{
				Name:       "lookup",
				Parameters: map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{"q"}},
			}},
		},
	})

	require.Len(t, params.System, 1)
	assert.Equal(t, "be brief", params.System[0].Text)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, []string{"q"}, params.Tools[0].OfTool.InputSchema.Required)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]any{"a", 1}))
	assert.Nil(t, requiredFields(nil))
}
