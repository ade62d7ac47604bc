package stylemesh

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stylemesh/config"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/stylist"
)

const testCatalog = `
agents:
  - name: researcher
    role: trend_research
    provider: mock
    instruction: Research fashion topics.
  - name: formatter
    role: newsletter_format
    provider: mock
    instruction: Format newsletters.
fallbacks:
  trend_research: Trend research is unavailable right now.
`

func newTestMesh(t *testing.T, models map[string]*model.MockModel) *StyleMesh {
	t.Helper()

	cat, err := config.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	m, err := New(func(o *Options) {
		o.Catalog = cat
		o.BackoffUnit = 0
		o.MaxAttempts = 2
		o.Resolve = Models{Mock: func(spec config.AgentSpec) model.Model {
			mm := model.NewMockModel(spec.Name, config.ProviderMock)
			models[spec.Name] = mm
			return mm
		}}.Resolve
	})
	require.NoError(t, err)

	return m
}

func TestStyleMesh_StylistThroughOrchestrator(t *testing.T) {
	models := map[string]*model.MockModel{}
	m := newTestMesh(t, models)

	models["researcher"].Script(model.MockTurn{Text: "Quiet luxury dominates the autumn runways."})

	res, err := m.Stylist().ResearchTrends(context.Background(), []string{"autumn", " "})
	require.NoError(t, err)
	assert.Equal(t, "Quiet luxury dominates the autumn runways.", res.Content)
	assert.False(t, res.Fallback)

	_, ok := m.Agent("photo_analysis")
	assert.False(t, ok)

	a, ok := m.Agent("newsletter_format")
	require.True(t, ok)
	assert.Equal(t, "formatter", a.Name())
}

func TestStyleMesh_FallbackAfterRetryableErrors(t *testing.T) {
	models := map[string]*model.MockModel{}
	m := newTestMesh(t, models)

	models["researcher"].Script(
		model.MockTurn{Err: errors.New("INVALID_ARGUMENT: bad request")},
		model.MockTurn{Err: errors.New("INVALID_ARGUMENT: bad request")},
	)

	res, err := m.Run(context.Background(), config.RoleTrendResearch, core.NewUserContent("denim"))
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "Trend research is unavailable right now.", res.Text)
	assert.Len(t, models["researcher"].Requests(), 2)
}

func TestStyleMesh_Invoke(t *testing.T) {
	models := map[string]*model.MockModel{}
	m := newTestMesh(t, models)

	models["formatter"].AddResponse("newsletter please", "# The Autumn Edit")

	out, err := m.Invoke(context.Background(), config.RoleNewsletterFormat, "newsletter please")
	require.NoError(t, err)
	assert.Equal(t, "# The Autumn Edit", out)

	_, err = m.Invoke(context.Background(), config.RolePhotoAnalysis, "hi")
	assert.ErrorIs(t, err, stylist.ErrAgentNotConfigured)
}

func TestModels_Resolve(t *testing.T) {
	_, err := Models{}.Resolve(config.AgentSpec{Name: "a", Provider: config.ProviderGoogle})
	assert.ErrorContains(t, err, "GOOGLE_API_KEY")

	_, err = Models{}.Resolve(config.AgentSpec{Name: "a", Provider: config.ProviderOpenAI})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = Models{}.Resolve(config.AgentSpec{Name: "a", Provider: config.ProviderAnthropic})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	_, err = Models{}.Resolve(config.AgentSpec{Name: "a", Provider: "cohere"})
	assert.Error(t, err)

	llm, err := Models{}.Resolve(config.AgentSpec{Name: "a", Provider: config.ProviderMock})
	require.NoError(t, err)
	assert.Equal(t, "mock", llm.Info().Provider)
}

func TestNew_DefaultCatalogNeedsCredentials(t *testing.T) {
	_, err := New()
	assert.ErrorContains(t, err, "GOOGLE_API_KEY")
}
