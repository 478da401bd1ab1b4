// Package tool implements the tool calling subsystem agents use to reach
// external capabilities (portfolio lookup, market research) with schema
// validated arguments. Tool results always travel back to the model as JSON
// strings; failures are encoded in that string instead of being raised.
package tool

import (
	"fmt"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide a snake_case name and a description that tells the model when to use it
//   - Define a JSON schema for parameters
//   - Be safe for concurrent use; one tool instance serves all runs
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments. The result must be JSON
	// serializable.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// PayloadKeyer is implemented by tools whose failure payload names the
// result field explicitly, e.g. {"error": "...", "portfolio": null}.
type PayloadKeyer interface {
	PayloadKey() string
}

// DefaultPayloadKey is the null result field used in failure payloads of
// tools that do not implement PayloadKeyer.
const DefaultPayloadKey = "result"

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodePanic      = "PANIC"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
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
