package visual

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/stylemesh/stylist"
)

// DefaultModel is the Gemini image model used by GeminiEditor.
const DefaultModel = "gemini-2.5-flash-image"

// ErrNoImage is returned when the model answers without an image.
var ErrNoImage = errors.New("model returned no image")

// GeminiEditor edits photos with a Gemini image model.
type GeminiEditor struct {
	client *genai.Client
	model  string
}

// NewGeminiEditor creates a GeminiEditor. An empty model selects DefaultModel.
func NewGeminiEditor(client *genai.Client, model string) *GeminiEditor {
	if model == "" {
		model = DefaultModel
	}

	return &GeminiEditor{client: client, model: model}
}

// Edit implements Editor.
func (g *GeminiEditor) Edit(ctx context.Context, src *stylist.Photo, prompt string) (*stylist.Photo, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{Data: src.Data, MIMEType: src.MIMEType}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}

	return firstImage(resp)
}

func firstImage(resp *genai.GenerateContentResponse) (*stylist.Photo, error) {
	if resp == nil {
		return nil, ErrNoImage
	}

	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}

		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return &stylist.Photo{Data: p.InlineData.Data, MIMEType: p.InlineData.MIMEType}, nil
			}
		}
	}

	return nil, ErrNoImage
}
