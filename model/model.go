package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/stylemesh/core"
)

// Tool definition types understood by the provider adapters.
const (
	// ToolTypeFunction is a locally executed function tool.
	ToolTypeFunction = "function"
	// ToolTypeWebSearch is a provider hosted web search (Gemini Google Search
	// grounding, OpenAI web_search_options). It never yields local function calls.
	ToolTypeWebSearch = "web_search"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // ToolTypeFunction or ToolTypeWebSearch
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions     string           `json:"instructions"` // System prompt
	Contents         []core.Content   `json:"contents"`     // Higher-level content converted to provider messages
	Tools            []ToolDefinition `json:"tools,omitempty"`
	Stream           bool             `json:"stream,omitempty"`
	ResponseMIMEType string           `json:"response_mime_type,omitempty"` // e.g. application/json
}

// HasWebSearch reports whether the request asks for hosted web search.
func (r Request) HasWebSearch() bool {
	for _, t := range r.Tools {
		if t.Type == ToolTypeWebSearch {
			return true
		}
	}
	return false
}

// FunctionTools returns the locally executed tool definitions.
func (r Request) FunctionTools() []ToolDefinition {
	var out []ToolDefinition
	for _, t := range r.Tools {
		if t.Type == "" || t.Type == ToolTypeFunction {
			out = append(out, t)
		}
	}
	return out
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "google", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows & agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ContentText concatenates the text parts of c.
func ContentText(c core.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// MockTurn is one scripted reply of a MockModel. A non-nil Err is delivered
// on the error channel instead of a response. Call requests a tool instead of
// answering with Text.
type MockTurn struct {
	Text string
	Call *core.FunctionCall
	Err  error
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted turns are consumed in order; once exhausted it answers from the
// prompt table or echoes the prompt.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	turns     []MockTurn
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// SetSupportsTools toggles the reported tool support.
func (m *MockModel) SetSupportsTools(v bool) { m.info.SupportsTools = v }

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends scripted turns.
func (m *MockModel) Script(turns ...MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (MockTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.turns) > 0 {
		t := m.turns[0]
		m.turns = m.turns[1:]
		return t, t.Err
	}

	if len(req.Contents) == 0 {
		return MockTurn{}, fmt.Errorf("no contents provided")
	}

	inputText := ContentText(req.Contents[len(req.Contents)-1])
	if full, ok := m.responses[inputText]; ok {
		return MockTurn{Text: full}, nil
	}

	return MockTurn{Text: fmt.Sprintf("Mock response to: %s", inputText)}, nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		if turn.Call != nil {
			respCh <- Response{
				Content:      core.Content{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: *turn.Call}}},
				FinishReason: "tool_calls",
			}
			return
		}

		full := turn.Text

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: string(r)}}},
				}:
				}
			}
		}

		respCh <- Response{
			Partial:      false,
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
