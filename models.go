package stylemesh

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/hupe1980/stylemesh/config"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/model/anthropic"
	"github.com/hupe1980/stylemesh/model/google"
	"github.com/hupe1980/stylemesh/model/openai"
)

// Models holds one client per provider and resolves catalogue entries to
// models sharing them. A nil client makes entries of that provider fail.
type Models struct {
	Google    *genai.Client
	OpenAI    *openaisdk.Client
	Anthropic *anthropicsdk.Client
	// Mock returns the model of mock entries; nil yields a fresh echoing MockModel.
	Mock func(spec config.AgentSpec) model.Model
}

// NewModels creates the clients of every provider with a credential in cfg.
func NewModels(ctx context.Context, cfg *config.Config) (Models, error) {
	var m Models

	if key := cfg.APIKey(config.ProviderGoogle); key != "" {
		client, err := google.NewClient(ctx, key)
		if err != nil {
			return Models{}, err
		}
		m.Google = client
	}

	if key := cfg.APIKey(config.ProviderOpenAI); key != "" {
		client := openaisdk.NewClient(openaiopt.WithAPIKey(key))
		m.OpenAI = &client
	}

	if key := cfg.APIKey(config.ProviderAnthropic); key != "" {
		client := anthropicsdk.NewClient(anthropicopt.WithAPIKey(key))
		m.Anthropic = &client
	}

	return m, nil
}

// Resolve implements stylist.ModelResolver.
func (m Models) Resolve(spec config.AgentSpec) (model.Model, error) {
	switch spec.Provider {
	case config.ProviderGoogle:
		if m.Google == nil {
			return nil, fmt.Errorf("provider %s: GOOGLE_API_KEY is not set", spec.Provider)
		}
		return google.NewModelFromClient(m.Google, func(o *google.Options) {
			if spec.Model != "" {
				o.Model = spec.Model
			}
			if spec.Temperature != nil {
				o.Temperature = float32(*spec.Temperature)
			}
			if spec.MaxTokens > 0 {
				o.MaxOutputTokens = int32(spec.MaxTokens) //nolint:gosec
			}
		}), nil

	case config.ProviderOpenAI:
		if m.OpenAI == nil {
			return nil, fmt.Errorf("provider %s: OPENAI_API_KEY is not set", spec.Provider)
		}
		return openai.NewModelFromClient(m.OpenAI, func(o *openai.Options) {
			if spec.Model != "" {
				o.Model = spec.Model
			}
			if spec.Temperature != nil {
				o.Temperature = *spec.Temperature
			}
			if spec.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(spec.MaxTokens)
			}
		}), nil

	case config.ProviderAnthropic:
		if m.Anthropic == nil {
			return nil, fmt.Errorf("provider %s: ANTHROPIC_API_KEY is not set", spec.Provider)
		}
		return anthropic.NewModelFromClient(m.Anthropic, func(o *anthropic.Options) {
			if spec.Model != "" {
				o.Model = anthropicsdk.Model(spec.Model)
			}
			if spec.Temperature != nil {
				o.Temperature = *spec.Temperature
			}
			if spec.MaxTokens > 0 {
				o.MaxTokens = int64(spec.MaxTokens)
			}
		}), nil

	case config.ProviderMock:
		if m.Mock != nil {
			return m.Mock(spec), nil
		}
		return model.NewMockModel(spec.Name, config.ProviderMock), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", spec.Provider)
	}
}
