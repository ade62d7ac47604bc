package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":  map[string]any{"type": "string"},
			"limit":  map[string]any{"type": "integer"},
			"season": map[string]any{"type": "string", "enum": []string{"spring", "fall"}},
		},
		"required": []string{"query"},
	}

	require.NoError(t, ValidateParameters(map[string]any{"query": "denim", "limit": float64(3)}, schema))

	err := ValidateParameters(map[string]any{"limit": float64(3)}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "query", vErr.Field)

	err = ValidateParameters(map[string]any{"query": "x", "limit": 1.5}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "limit", vErr.Field)

	err = ValidateParameters(map[string]any{"query": "x", "season": "winter"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "season", vErr.Field)

	decoded := map[string]any{"required": []any{"query"}}
	assert.Error(t, ValidateParameters(map[string]any{}, decoded))
}

func TestCreateSchema(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"search terms"`
		Limit *int   `json:"limit,omitempty"`
	}

	schema := CreateSchema(args{})
	assert.Equal(t, []string{"query"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "search terms", props["query"].(map[string]any)["description"])
}

func TestCreateSchema_Enum(t *testing.T) {
	type args struct {
		Season string `json:"season,omitempty" enum:"spring,summer"`
	}

	schema := CreateSchema(args{})
	assert.Nil(t, schema["required"])

	season := schema["properties"].(map[string]any)["season"].(map[string]any)
	assert.Equal(t, []string{"spring", "summer"}, season["enum"])

	assert.Error(t, ValidateParameters(map[string]any{"season": "winter"}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"season": "summer"}, schema))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name}} & {{default \"friend\" .missing}}", map[string]any{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana & friend", out)

	out, err = RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
