package mcpserver

import "context"

// ToolHandler is the interface for MCP tools.
type ToolHandler interface {
	// Name returns the unique tool name.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() map[string]any

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (*ToolCallResult, error)
}

// ToolDescriptor is implemented by tools that publish a title, annotations
// or descriptor metadata in tools/list. BaseTool implements it.
type ToolDescriptor interface {
	Title() string
	Annotations() *ToolAnnotations
	Meta() map[string]any
}

// BaseTool provides a base implementation for common tool fields.
// Embed this in your tool structs and implement Execute().
type BaseTool struct {
	ToolName        string
	ToolTitle       string
	ToolDescription string
	ToolSchema      map[string]any
	ToolAnnotations *ToolAnnotations
	ToolMeta        map[string]any
}

func (t *BaseTool) Name() string                  { return t.ToolName }
func (t *BaseTool) Title() string                 { return t.ToolTitle }
func (t *BaseTool) Description() string           { return t.ToolDescription }
func (t *BaseTool) InputSchema() map[string]any   { return t.ToolSchema }
func (t *BaseTool) Annotations() *ToolAnnotations { return t.ToolAnnotations }
func (t *BaseTool) Meta() map[string]any          { return t.ToolMeta }

// Middleware is a function that wraps a request handler.
type Middleware func(next HandlerFunc) HandlerFunc

// HandlerFunc is a function that handles a JSON-RPC request.
type HandlerFunc func(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse

// ToolMiddleware wraps tool execution.
type ToolMiddleware func(next ToolFunc) ToolFunc

// ToolFunc executes the named tool.
type ToolFunc func(ctx context.Context, name string, args map[string]any) (*ToolCallResult, error)
