// Package google implements model.Model on top of the Gemini API
// (google.golang.org/genai). It supports image input, JSON response mode,
// function calling and Google Search grounding for hosted web search.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
)

// DefaultModel is the Gemini model used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Options configure the Gemini adapter.
type Options struct {
	Model           string
	APIKey          string
	Temperature     float32
	MaxOutputTokens int32
	SupportsTools   bool
}

// Model adapts a genai client to model.Model.
type Model struct {
	mu     sync.Mutex
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           DefaultModel,
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		SupportsTools:   true,
	}
}

// NewModel returns a Gemini model. The underlying client is created on first use.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{opts: opts}
}

// NewModelFromClient wraps an existing genai client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	m := NewModel(optFns...)
	m.client = client

	return m
}

// NewClient creates a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return client, nil
}

func (m *Model) getClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	client, err := NewClient(ctx, m.opts.APIKey)
	if err != nil {
		return nil, err
	}

	m.client = client

	return client, nil
}

// Generate implements model.Model. Gemini answers are delivered as one final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client, err := m.getClient(ctx)
		if err != nil {
			errCh <- err
			return
		}

		contents, system := convertContents(req.Contents)
		if len(contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		config := m.buildConfig(req, system)

		result, err := client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		if result == nil {
			errCh <- fmt.Errorf("empty response from Gemini API")
			return
		}

		out <- convertResponse(result)
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request, system string) *genai.GenerateContentConfig {
	temperature := m.opts.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  m.opts.MaxOutputTokens,
		ResponseMIMEType: req.ResponseMIMEType,
	}

	if system == "" {
		system = req.Instructions
	}

	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	if fns := req.FunctionTools(); len(fns) > 0 {
		config.Tools = append(config.Tools, &genai.Tool{FunctionDeclarations: convertTools(fns)})
		// Gemini rejects function calling combined with a JSON response type.
		config.ResponseMIMEType = ""
	}

	if req.HasWebSearch() {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}

	return config
}

// convertContents maps normalized contents to Gemini contents and returns
// the concatenated system text separately.
func convertContents(in []core.Content) ([]*genai.Content, string) {
	var (
		system   string
		contents []*genai.Content
	)

	for _, c := range in {
		if c.Role == "system" {
			text := model.ContentText(c)
			if system != "" && text != "" {
				system += "\n\n"
			}
			system += text
			continue
		}

		role := "user"
		if c.Role == "assistant" {
			role = "model"
		}

		var parts []*genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.FilePart:
				if part.File.IsInline() {
					mime := part.File.MimeType
					if mime == "" {
						mime = "image/jpeg"
					}
					parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: part.File.Data, MIMEType: mime}})
				} else if part.File.URI != "" {
					parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: part.File.URI, MIMEType: part.File.MimeType}})
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				resp := map[string]any{"output": part.FunctionResponse.Response}
				if part.FunctionResponse.Error != "" {
					resp = map[string]any{"error": part.FunctionResponse.Error}
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: resp,
				}})
			}
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}

	return contents, system
}

func convertTools(defs []model.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, 0, len(defs))

	for _, d := range defs {
		schema := convertSchema(d.Function.Parameters)
		if schema == nil {
			schema = &genai.Schema{Type: genai.TypeObject}
		}

		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        d.Function.Name,
			Description: d.Function.Description,
			Parameters:  schema,
		})
	}

	return declarations
}

// convertSchema converts a JSON schema map into a genai.Schema.
func convertSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}

	schema := &genai.Schema{}
	if desc, ok := s["description"].(string); ok {
		schema.Description = desc
	}

	switch s["type"] {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if items, ok := s["items"].(map[string]any); ok {
			schema.Items = convertSchema(items)
		}
	case "object":
		schema.Type = genai.TypeObject
	default:
		schema.Type = genai.TypeString
	}

	if props, ok := s["properties"].(map[string]any); ok {
		schema.Type = genai.TypeObject
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if child, ok := raw.(map[string]any); ok {
				schema.Properties[name] = convertSchema(child)
			}
		}
	}

	schema.Required = stringSlice(s["required"])
	schema.Enum = stringSlice(s["enum"])

	return schema
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, r := range vals {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func convertResponse(result *genai.GenerateContentResponse) model.Response {
	var parts []core.Part

	if text := result.Text(); text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}

	for i, fc := range result.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil || fc.Args == nil {
			args = []byte("{}")
		}

		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", fc.Name, i)
		}

		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        id,
			Name:      fc.Name,
			Arguments: string(args),
		}})
	}

	resp := model.Response{
		ID:           result.ResponseID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "stop",
	}

	if len(result.Candidates) > 0 && result.Candidates[0].FinishReason != "" {
		resp.FinishReason = string(result.Candidates[0].FinishReason)
	}

	if u := result.UsageMetadata; u != nil {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return resp
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "google",
		SupportsTools: m.opts.SupportsTools,
	}
}
