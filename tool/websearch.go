package tool

import (
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
)

// WebSearchName is the declared name of the hosted search tool.
const WebSearchName = "web_search"

// WebSearch is a provider hosted search tool (Gemini Google Search grounding,
// OpenAI web search options). The model runs the search itself, so it is never
// called locally.
type WebSearch struct{}

// NewWebSearch returns the hosted web search tool.
func NewWebSearch() *WebSearch { return &WebSearch{} }

// Name implements Tool.
func (*WebSearch) Name() string { return WebSearchName }

// Description implements Tool.
func (*WebSearch) Description() string {
	return "Search the web for current information. Executed by the model provider."
}

// Parameters implements Tool.
func (*WebSearch) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Type implements Typed.
func (*WebSearch) Type() string { return model.ToolTypeWebSearch }

// Call always fails: a hosted tool has no local implementation.
func (*WebSearch) Call(_ *core.ToolContext, _ map[string]any) (any, error) {
	return nil, NewToolError(WebSearchName, "web search is executed by the model provider", "HOSTED_TOOL")
}
