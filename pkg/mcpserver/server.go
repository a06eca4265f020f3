// Package mcpserver provides a small MCP (Model Context Protocol) server.
//
// It speaks JSON-RPC 2.0 over stdio, streamable HTTP and the HTTP+SSE
// transport, and exposes tools, resources and resource templates through
// registration functions.
//
// Quick Start:
//
//	server := mcpserver.New("my-server", "1.0.0")
//	server.RegisterTool(&MyTool{})
//	server.RunStdio(ctx) // or mcpserver.NewHTTPServer(server).ListenAndServe(ctx, ":8080")
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Server is the core MCP server that manages tools and handles JSON-RPC requests.
type Server struct {
	name            string
	version         string
	protocolVersion string
	tools           map[string]ToolHandler
	toolOrder       []string
	resources       []resourceEntry
	templates       []templateEntry
	sessions        *SessionRegistry
	sessionTTL      time.Duration
	middleware      []Middleware
	toolMiddleware  []ToolMiddleware
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessions replaces the session registry. It takes precedence over
// WithSessionTTL.
func WithSessions(r *SessionRegistry) Option {
	return func(s *Server) {
		if r != nil {
			s.sessions = r
		}
	}
}

// WithSessionTTL sets the idle timeout of the default session registry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = ttl
	}
}

// New creates a new MCP server with the given name and version.
func New(name, version string, opts ...Option) *Server {
	s := &Server{
		name:            name,
		version:         version,
		protocolVersion: "2024-11-05",
		tools:           make(map[string]ToolHandler),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = NewSessionRegistry(s.sessionTTL, WithRegistryLogger(s.logger))
	}
	return s
}

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Sessions returns the session registry shared by the transports.
func (s *Server) Sessions() *SessionRegistry { return s.sessions }

// RegisterTool adds a tool to the server.
func (s *Server) RegisterTool(tool ToolHandler) {
	if _, exists := s.tools[tool.Name()]; !exists {
		s.toolOrder = append(s.toolOrder, tool.Name())
	}
	s.tools[tool.Name()] = tool
	s.logger.Info("registered tool", "name", tool.Name())
}

// RegisterTools adds multiple tools to the server.
func (s *Server) RegisterTools(tools ...ToolHandler) {
	for _, tool := range tools {
		s.RegisterTool(tool)
	}
}

// Use adds middleware to the server's processing chain.
func (s *Server) Use(mw Middleware) {
	s.middleware = append(s.middleware, mw)
}

// UseTool adds middleware around tool execution.
func (s *Server) UseTool(mw ToolMiddleware) {
	s.toolMiddleware = append(s.toolMiddleware, mw)
}

// HandleRequest processes a single JSON-RPC request and returns a response.
// Notifications yield a nil response.
func (s *Server) HandleRequest(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	handler := s.coreHandler
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	return handler(ctx, req)
}

func (s *Server) coreHandler(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	resp := &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch req.Method {
	case "initialize":
		resp.Result = s.handleInitialize(ctx)
	case "notifications/initialized":
		s.logger.Info("client initialized")
		return nil
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		resp.Result = s.handleToolsList()
	case "tools/call":
		resp.Result = s.handleToolCall(ctx, req.Params)
	case "resources/list":
		resp.Result = s.handleResourcesList()
	case "resources/templates/list":
		resp.Result = s.handleResourceTemplatesList()
	case "resources/read":
		result, rpcErr := s.handleResourceRead(ctx, req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
	default:
		resp.Error = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return resp
}

func (s *Server) handleInitialize(ctx context.Context) *InitializeResult {
	caps := ServerCapabilities{
		Tools: ToolsCapability{ListChanged: false},
	}
	if len(s.resources) > 0 || len(s.templates) > 0 {
		caps.Resources = &ResourcesCapability{}
	}

	// SSE clients initialize on a session created by the stream.
	var sessionID string
	if sess, ok := SessionFromContext(ctx); ok {
		sessionID = sess.ID
	} else {
		sessionID = s.sessions.Create(0).ID
	}

	return &InitializeResult{
		ProtocolVersion: s.protocolVersion,
		Capabilities:    caps,
		ServerInfo: ServerInfo{
			Name:    s.name,
			Version: s.version,
		},
		SessionID: sessionID,
	}
}

func (s *Server) handleToolsList() *ToolsListResult {
	tools := make([]ToolDef, 0, len(s.toolOrder))
	for _, name := range s.toolOrder {
		h := s.tools[name]
		def := ToolDef{
			Name:        h.Name(),
			Description: h.Description(),
			InputSchema: h.InputSchema(),
		}
		if d, ok := h.(ToolDescriptor); ok {
			def.Title = d.Title()
			def.Annotations = d.Annotations()
			def.Meta = d.Meta()
		}
		tools = append(tools, def)
	}
	return &ToolsListResult{Tools: tools}
}

func decodeParams(params any, out any) error {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("parse params: %w", err)
	}
	if err := json.Unmarshal(paramsBytes, out); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}
	return nil
}

func (s *Server) handleToolCall(ctx context.Context, params any) *ToolCallResult {
	var callParams struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := decodeParams(params, &callParams); err != nil {
		return ErrorResult(err)
	}
	if callParams.Arguments == nil {
		callParams.Arguments = map[string]any{}
	}

	result, err := s.CallTool(ctx, callParams.Name, callParams.Arguments)
	if err != nil {
		return ErrorResult(err)
	}
	return result
}

// CallTool executes a registered tool through the tool middleware chain.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolCallResult, error) {
	call := ToolFunc(func(ctx context.Context, name string, args map[string]any) (*ToolCallResult, error) {
		tool, ok := s.tools[name]
		if !ok {
			return nil, fmt.Errorf("tool not found: %s", name)
		}
		return tool.Execute(ctx, args)
	})
	for i := len(s.toolMiddleware) - 1; i >= 0; i-- {
		call = s.toolMiddleware[i](call)
	}
	return call(ctx, name, args)
}

func (s *Server) handleResourceRead(ctx context.Context, params any) (*ReadResourceResult, *RPCError) {
	var readParams struct {
		URI string `json:"uri"`
	}
	if err := decodeParams(params, &readParams); err != nil || readParams.URI == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: uri is required"}
	}

	result, err := s.ReadResource(ctx, readParams.URI)
	if errors.Is(err, ErrResourceNotFound) {
		return nil, &RPCError{
			Code:    CodeResourceNotFound,
			Message: fmt.Sprintf("Unknown resource: %s", readParams.URI),
		}
	}
	if err != nil {
		s.logger.Error("read resource", "uri", readParams.URI, "error", err)
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return result, nil
}

// CheckSession verifies if a session ID is valid.
func (s *Server) CheckSession(id string) bool {
	_, ok := s.sessions.Get(id)
	return ok
}
