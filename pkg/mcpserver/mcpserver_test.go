package mcpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// EchoTool is a simple tool for testing that echoes back its input.
type EchoTool struct {
	mcpserver.BaseTool
}

func NewEchoTool() *EchoTool {
	return &EchoTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "echo",
			ToolDescription: "Echoes back the input message",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "Message to echo",
					},
				},
				"required": []string{"message"},
			},
		},
	}
}

func (t *EchoTool) Execute(_ context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
	msg, _ := args["message"].(string)
	return mcpserver.TextResult("Echo: " + msg), nil
}

func TestServer_Initialize(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(NewEchoTool())

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
	})

	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(*mcpserver.InitializeResult)
	if !ok {
		t.Fatal("expected InitializeResult")
	}
	if result.ServerInfo.Name != "test-server" {
		t.Fatalf("expected 'test-server', got '%s'", result.ServerInfo.Name)
	}
	if result.SessionID == "" {
		t.Fatal("expected non-empty session ID")
	}
}

func TestServer_ToolsList(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(NewEchoTool())

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/list",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(*mcpserver.ToolsListResult)
	if !ok {
		t.Fatal("expected ToolsListResult")
	}
	if len(result.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result.Tools))
	}
	if result.Tools[0].Name != "echo" {
		t.Fatalf("expected 'echo', got '%s'", result.Tools[0].Name)
	}
}

func TestServer_ToolCall(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(NewEchoTool())

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      3,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      "echo",
			"arguments": map[string]any{"message": "hello world"},
		},
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(*mcpserver.ToolCallResult)
	if !ok {
		t.Fatal("expected ToolCallResult")
	}
	if result.IsError {
		t.Fatal("expected no error")
	}
	if len(result.Content) != 1 || result.Content[0].Text != "Echo: hello world" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestServer_ToolNotFound(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      4,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      "nonexistent",
			"arguments": map[string]any{},
		},
	})

	result, ok := resp.Result.(*mcpserver.ToolCallResult)
	if !ok {
		t.Fatal("expected ToolCallResult")
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestServer_MethodNotFound(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      5,
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Fatalf("expected code -32601, got %d", resp.Error.Code)
	}
}

func TestServer_Middleware(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(NewEchoTool())

	calls := 0
	s.Use(func(next mcpserver.HandlerFunc) mcpserver.HandlerFunc {
		return func(ctx context.Context, req *mcpserver.JSONRPCRequest) *mcpserver.JSONRPCResponse {
			calls++
			return next(ctx, req)
		}
	})

	s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      6,
		Method:  "tools/list",
	})

	if calls != 1 {
		t.Fatalf("expected middleware to be called once, got %d", calls)
	}
}

func TestServer_Session(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      7,
		Method:  "initialize",
	})

	result := resp.Result.(*mcpserver.InitializeResult)
	if !s.CheckSession(result.SessionID) {
		t.Fatal("expected session to be valid")
	}
	if s.CheckSession("invalid-session") {
		t.Fatal("expected invalid session to fail")
	}
}

func TestServer_Ping(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{JSONRPC: "2.0", ID: 8, Method: "ping"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestServer_ToolsListIncludesDescriptor(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	echo := NewEchoTool()
	echo.ToolTitle = "Echo"
	echo.ToolAnnotations = &mcpserver.ToolAnnotations{ReadOnlyHint: true}
	echo.ToolMeta = map[string]any{"openai/outputTemplate": "ui://widget/echo.html"}
	s.RegisterTool(echo)

	resp := s.HandleRequest(context.Background(), &mcpserver.JSONRPCRequest{JSONRPC: "2.0", ID: 9, Method: "tools/list"})
	def := resp.Result.(*mcpserver.ToolsListResult).Tools[0]
	if def.Title != "Echo" {
		t.Fatalf("expected title 'Echo', got %q", def.Title)
	}
	if def.Annotations == nil || !def.Annotations.ReadOnlyHint {
		t.Fatal("expected read-only annotation")
	}
	if def.Meta["openai/outputTemplate"] != "ui://widget/echo.html" {
		t.Fatalf("unexpected meta: %v", def.Meta)
	}
}

func TestServer_ToolMiddleware(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(NewEchoTool())

	var seen []string
	s.UseTool(func(next mcpserver.ToolFunc) mcpserver.ToolFunc {
		return func(ctx context.Context, name string, args map[string]any) (*mcpserver.ToolCallResult, error) {
			seen = append(seen, name)
			return next(ctx, name, args)
		}
	})

	result, err := s.CallTool(context.Background(), "echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Content[0].Text != "Echo: hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(seen) != 1 || seen[0] != "echo" {
		t.Fatalf("unexpected middleware calls: %v", seen)
	}
}

func registerResources(s *mcpserver.Server) {
	s.RegisterResource(mcpserver.Resource{URI: "doctor://list", Name: "Doctors", MimeType: "application/json"},
		func(ctx context.Context, req mcpserver.ResourceRequest) ([]mcpserver.ResourceContents, error) {
			return []mcpserver.ResourceContents{{URI: req.URI, MimeType: "application/json", Text: "[]"}}, nil
		})
	s.RegisterResourceTemplate(mcpserver.ResourceTemplate{URITemplate: "doctor://{id}/slots", Name: "Slots"},
		func(ctx context.Context, req mcpserver.ResourceRequest) ([]mcpserver.ResourceContents, error) {
			return []mcpserver.ResourceContents{{URI: req.URI, Text: "slots of " + req.Vars["id"]}}, nil
		})
}

func TestServer_Resources(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	registerResources(s)
	ctx := context.Background()

	resp := s.HandleRequest(ctx, &mcpserver.JSONRPCRequest{JSONRPC: "2.0", ID: 10, Method: "resources/list"})
	if list := resp.Result.(*mcpserver.ResourcesListResult); len(list.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(list.Resources))
	}

	resp = s.HandleRequest(ctx, &mcpserver.JSONRPCRequest{JSONRPC: "2.0", ID: 11, Method: "resources/templates/list"})
	if list := resp.Result.(*mcpserver.ResourceTemplatesListResult); len(list.ResourceTemplates) != 1 {
		t.Fatalf("expected 1 template, got %d", len(list.ResourceTemplates))
	}

	resp = s.HandleRequest(ctx, &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0", ID: 12, Method: "resources/read",
		Params: map[string]any{"uri": "doctor://abc-123/slots"},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	read := resp.Result.(*mcpserver.ReadResourceResult)
	if read.Contents[0].Text != "slots of abc-123" {
		t.Fatalf("unexpected contents: %+v", read.Contents)
	}

	resp = s.HandleRequest(ctx, &mcpserver.JSONRPCRequest{
		JSONRPC: "2.0", ID: 13, Method: "resources/read",
		Params: map[string]any{"uri": "doctor://a/b/slots"},
	})
	if resp.Error == nil || resp.Error.Code != mcpserver.CodeResourceNotFound {
		t.Fatalf("expected resource not found, got %+v", resp.Error)
	}

	initResp := s.HandleRequest(ctx, &mcpserver.JSONRPCRequest{JSONRPC: "2.0", ID: 14, Method: "initialize"})
	if initResp.Result.(*mcpserver.InitializeResult).Capabilities.Resources == nil {
		t.Fatal("expected resources capability")
	}
}

func TestServer_ServeStdio(t *testing.T) {
	s := mcpserver.New("test-server", "1.0.0")
	s.RegisterTool(NewEchoTool())

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"ping"}
`)
	var out bytes.Buffer
	if err := s.ServeStdio(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}
	var first struct {
		Result mcpserver.ToolCallResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Result.Content[0].Text != "Echo: hi" {
		t.Fatalf("unexpected result: %s", lines[0])
	}
}
