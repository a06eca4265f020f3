package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// RunStdio starts the server using stdin/stdout (stdio transport). Logs must
// go to stderr; stdout carries protocol frames only.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// ServeStdio reads newline-delimited JSON-RPC requests from r and writes
// responses to w until EOF or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("starting MCP server (stdio)", "name", s.name, "version", s.version, "tools", len(s.tools))

	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var req JSONRPCRequest
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				// The decoder cannot resync after a syntax error.
				_ = encoder.Encode(&JSONRPCResponse{
					JSONRPC: "2.0",
					Error:   &RPCError{Code: CodeParseError, Message: "Parse error"},
				})
			}
			return fmt.Errorf("decode request: %w", err)
		}

		resp := s.HandleRequest(ctx, &req)
		if resp == nil {
			continue // Notification, no response needed
		}

		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
}
