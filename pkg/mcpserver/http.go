package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	mcpPath      = "/mcp"
	messagesPath = "/mcp/messages"
)

// HTTPServer serves an MCP Server over streamable HTTP on POST /mcp and,
// when enabled, over the HTTP+SSE transport (GET /mcp, POST /mcp/messages).
type HTTPServer struct {
	server          *Server
	logger          *slog.Logger
	sse             bool
	queueSize       int
	keepAlive       time.Duration
	janitorInterval time.Duration
	routes          []route
}

type route struct {
	pattern string
	handler http.Handler
}

// HTTPOption configures an HTTPServer.
type HTTPOption func(*HTTPServer)

// WithSSE enables the HTTP+SSE transport endpoints.
func WithSSE() HTTPOption {
	return func(hs *HTTPServer) { hs.sse = true }
}

// WithKeepAlive sets the interval of SSE keep-alive comments. Non-positive
// values keep the default.
func WithKeepAlive(d time.Duration) HTTPOption {
	return func(hs *HTTPServer) {
		if d > 0 {
			hs.keepAlive = d
		}
	}
}

// WithJanitorInterval sets how often idle sessions are swept.
func WithJanitorInterval(d time.Duration) HTTPOption {
	return func(hs *HTTPServer) { hs.janitorInterval = d }
}

// WithRoute mounts an extra GET handler, e.g. /metrics.
func WithRoute(pattern string, h http.Handler) HTTPOption {
	return func(hs *HTTPServer) { hs.routes = append(hs.routes, route{pattern: pattern, handler: h}) }
}

// NewHTTPServer wraps s for HTTP transports.
func NewHTTPServer(s *Server, opts ...HTTPOption) *HTTPServer {
	hs := &HTTPServer{
		server:          s,
		logger:          s.logger,
		queueSize:       16,
		keepAlive:       25 * time.Second,
		janitorInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(hs)
	}
	return hs
}

// RunHTTP starts the MCP server on an HTTP endpoint.
func (s *Server) RunHTTP(ctx context.Context, addr string, opts ...HTTPOption) error {
	return NewHTTPServer(s, opts...).ListenAndServe(ctx, addr)
}

// Handler returns the routed HTTP handler.
func (hs *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(hs.corsMiddleware)

	// MCP protocol endpoint (JSON-RPC 2.0)
	r.Post(mcpPath, hs.handleMCPRequest)
	r.Delete(mcpPath, hs.handleMCPDelete)
	if hs.sse {
		r.Get(mcpPath, hs.handleSSEStream)
		r.Post(messagesPath, hs.handleSSEMessage)
	}

	// RESTful endpoints
	r.Get("/api/tools", hs.handleToolsList)
	r.Post("/api/tools/{name}", hs.handleToolCall)

	// Health check
	r.Get("/health", hs.handleHealth)

	for _, rt := range hs.routes {
		r.Method(http.MethodGet, rt.pattern, rt.handler)
	}
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully. The
// session janitor runs for the lifetime of the server.
func (hs *HTTPServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           hs.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go hs.server.sessions.Run(janitorCtx, hs.janitorInterval)

	hs.logger.Info("starting HTTP server", "addr", addr, "tools", len(hs.server.tools), "sse", hs.sse)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Ending the sessions releases open SSE streams before Shutdown waits on them.
	stopJanitor()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hs.logger.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (hs *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (hs *HTTPServer) handleMCPRequest(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		hs.writeError(w, CodeParseError, "Parse error")
		return
	}

	ctx := r.Context()
	// Validate session for non-initialize requests
	if req.Method != "initialize" {
		sess, ok := hs.server.sessions.Get(r.Header.Get("Mcp-Session-Id"))
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		ctx = ContextWithSession(ctx, sess)
	}

	resp := hs.server.HandleRequest(ctx, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// Set session ID header for initialize response
	if req.Method == "initialize" && resp.Error == nil {
		if result, ok := resp.Result.(*InitializeResult); ok && result.SessionID != "" {
			w.Header().Set("Mcp-Session-Id", result.SessionID)
		}
	}

	// Choose response format based on Accept header
	if isEventStream(r) {
		hs.sendSSE(w, resp)
	} else {
		hs.sendJSON(w, resp)
	}
}

func (hs *HTTPServer) handleMCPDelete(w http.ResponseWriter, r *http.Request) {
	if !hs.server.sessions.Remove(r.Header.Get("Mcp-Session-Id")) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (hs *HTTPServer) sendJSON(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		hs.logger.Warn("write response", "error", err)
	}
}

func (hs *HTTPServer) sendSSE(w http.ResponseWriter, resp *JSONRPCResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		hs.sendJSON(w, resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	respBytes, err := json.Marshal(resp)
	if err != nil {
		hs.logger.Error("marshal response", "error", err)
		return
	}
	writeEvent(w, "message", respBytes)
	flusher.Flush()
}

func (hs *HTTPServer) handleToolsList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hs.server.handleToolsList())
}

func (hs *HTTPServer) handleToolCall(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "name")

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := hs.server.handleToolCall(r.Context(), map[string]any{
		"name":      toolName,
		"arguments": args,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"server":    hs.server.name,
		"version":   hs.server.version,
		"sessions":  hs.server.sessions.Len(),
	})
}

func (hs *HTTPServer) writeError(w http.ResponseWriter, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(resp)
}
