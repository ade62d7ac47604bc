package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model providers understood by the catalogue.
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Agent roles served by the stylist package.
const (
	RolePhotoAnalysis        = "photo_analysis"
	RoleOutfitRecommendation = "outfit_recommendation"
	RoleTrendResearch        = "trend_research"
	RoleNewsletterFormat     = "newsletter_format"
)

// Tools an agent may list.
const (
	// ToolWebSearch enables hosted web search.
	ToolWebSearch = "web_search"
	// ToolColorPalette looks up colours for a skin undertone.
	ToolColorPalette = "color_palette"
)

//go:embed agents.yaml
var defaultCatalog []byte

// AgentSpec describes one agent of the catalogue.
type AgentSpec struct {
	Name             string   `yaml:"name"`
	Role             string   `yaml:"role"`
	Description      string   `yaml:"description"`
	Provider         string   `yaml:"provider"`
	Model            string   `yaml:"model"`
	Instruction      string   `yaml:"instruction"`
	Temperature      *float64 `yaml:"temperature,omitempty"`
	MaxTokens        int      `yaml:"max_tokens,omitempty"`
	ResponseMIMEType string   `yaml:"response_mime_type,omitempty"`
	Tools            []string `yaml:"tools,omitempty"`
	Streaming        bool     `yaml:"streaming,omitempty"`
}

// HasTool reports whether the agent lists the named tool.
func (a AgentSpec) HasTool(name string) bool {
	return slices.Contains(a.Tools, name)
}

// Catalog is the agent catalogue plus the fallback reply of each role.
type Catalog struct {
	Agents    []AgentSpec       `yaml:"agents"`
	Fallbacks map[string]string `yaml:"fallbacks"`
}

// LoadCatalog reads the catalogue at path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read agent catalogue: %w", err)
		}
		data = b
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalogue.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse agent catalogue: %w", err)
	}

	for role, fb := range c.Fallbacks {
		c.Fallbacks[role] = strings.TrimSpace(fb)
	}

	for i := range c.Agents {
		c.Agents[i].Instruction = strings.TrimSpace(c.Agents[i].Instruction)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent catalogue: %w", err)
	}

	return &c, nil
}

// Validate checks names, roles and providers, and that the fallback of a
// JSON speaking agent is valid JSON.
func (c *Catalog) Validate() error {
	if len(c.Agents) == 0 {
		return errors.New("no agents defined")
	}

	names := make(map[string]bool, len(c.Agents))
	roles := make(map[string]bool, len(c.Agents))

	for _, a := range c.Agents {
		if a.Name == "" {
			return errors.New("agent name cannot be empty")
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		names[a.Name] = true

		if a.Role == "" {
			return fmt.Errorf("agent %q: role cannot be empty", a.Name)
		}
		if roles[a.Role] {
			return fmt.Errorf("duplicate agent role %q", a.Role)
		}
		roles[a.Role] = true

		switch a.Provider {
		case ProviderGoogle, ProviderOpenAI, ProviderAnthropic, ProviderMock:
		default:
			return fmt.Errorf("agent %q: unknown provider %q", a.Name, a.Provider)
		}

		for _, t := range a.Tools {
			switch t {
			case ToolWebSearch, ToolColorPalette:
			default:
				return fmt.Errorf("agent %q: unknown tool %q", a.Name, t)
			}
		}

		fb, ok := c.Fallbacks[a.Role]
		if ok && a.ResponseMIMEType == "application/json" && !json.Valid([]byte(fb)) {
			return fmt.Errorf("fallback for role %q is not valid JSON", a.Role)
		}
	}

	for role := range c.Fallbacks {
		if !roles[role] {
			return fmt.Errorf("fallback for unknown role %q", role)
		}
	}

	return nil
}

// ByRole returns the agent registered for role.
func (c *Catalog) ByRole(role string) (AgentSpec, bool) {
	for _, a := range c.Agents {
		if a.Role == role {
			return a, true
		}
	}
	return AgentSpec{}, false
}
