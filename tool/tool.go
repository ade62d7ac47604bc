// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (lookups, computations, side effects) with schema
// validated arguments and consistent error handling.
package tool

import (
	"fmt"

	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/internal/util"
	"github.com/hupe1980/stylemesh/model"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools have access to a ToolContext for session state, artifacts and the
// current function call id. Implementations must be safe for concurrent use:
// an agent (and therefore its tools) is shared by every invocation.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]interface{}

	// Call executes the tool with already decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// Typed is implemented by tools that are not plain local functions, such as
// provider hosted web search.
type Typed interface {
	Type() string
}

// Definition converts t into the model facing tool declaration.
func Definition(t Tool) model.ToolDefinition {
	typ := model.ToolTypeFunction
	if typed, ok := t.(Typed); ok {
		typ = typed.Type()
	}

	return model.ToolDefinition{
		Type: typ,
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
