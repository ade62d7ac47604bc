package stylist

import (
	"fmt"

	"github.com/hupe1980/stylemesh/agent"
	"github.com/hupe1980/stylemesh/config"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/model"
	"github.com/hupe1980/stylemesh/tool"
)

// ModelResolver returns the model serving an agent of the catalogue.
type ModelResolver func(spec config.AgentSpec) (model.Model, error)

// NewAgents builds one ModelAgent per catalogue entry, keyed by role.
func NewAgents(cat *config.Catalog, resolve ModelResolver) (map[string]core.Agent, error) {
	agents := make(map[string]core.Agent, len(cat.Agents))

	for _, spec := range cat.Agents {
		llm, err := resolve(spec)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", spec.Name, err)
		}

		var tools []tool.Tool
		if spec.HasTool(config.ToolWebSearch) {
			tools = append(tools, tool.NewWebSearch())
		}
		if spec.HasTool(config.ToolColorPalette) {
			tools = append(tools, NewColorPaletteTool())
		}

		agents[spec.Role] = agent.NewModelAgent(spec.Name, llm, func(o *agent.ModelAgentOptions) {
			o.Role = spec.Role
			o.Description = spec.Description
			o.Instruction = agent.NewInstructionFromText(spec.Instruction)
			o.ResponseMIMEType = spec.ResponseMIMEType
			o.EnableStreaming = spec.Streaming
			o.Tools = tools
		})
	}

	return agents, nil
}
