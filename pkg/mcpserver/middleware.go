package mcpserver

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware logs all incoming requests and their results.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
			start := time.Now()
			attrs := []any{"method", req.Method, "id", req.ID}
			if sess, ok := SessionFromContext(ctx); ok {
				attrs = append(attrs, "session_id", sess.ID)
			}
			logger.Debug("mcp request", attrs...)
			resp := next(ctx, req)
			if resp != nil && resp.Error != nil {
				logger.Error("mcp error", "method", req.Method, "code", resp.Error.Code, "message", resp.Error.Message)
				return resp
			}
			logger.Info("mcp request handled", append(attrs, "duration_ms", time.Since(start).Milliseconds())...)
			return resp
		}
	}
}

// RecoveryMiddleware catches panics and returns a JSON-RPC error.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *JSONRPCRequest) (resp *JSONRPCResponse) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in MCP handler", "method", req.Method, "panic", r)
					resp = &JSONRPCResponse{
						JSONRPC: "2.0",
						ID:      req.ID,
						Error: &RPCError{
							Code:    CodeInternalError,
							Message: "Internal error",
						},
					}
				}
			}()
			return next(ctx, req)
		}
	}
}

// ToolLoggingMiddleware logs each tool call with its outcome.
func ToolLoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolFunc) ToolFunc {
		return func(ctx context.Context, name string, args map[string]any) (*ToolCallResult, error) {
			start := time.Now()
			result, err := next(ctx, name, args)
			switch {
			case err != nil:
				logger.Warn("tool call failed", "tool", name, "error", err)
			case result != nil && result.IsError:
				logger.Info("tool call returned error result", "tool", name, "duration_ms", time.Since(start).Milliseconds())
			default:
				logger.Info("tool call", "tool", name, "duration_ms", time.Since(start).Milliseconds())
			}
			return result, err
		}
	}
}
