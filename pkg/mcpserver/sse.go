package mcpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

func writeEvent(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// handleSSEStream opens an event stream. The first event names the endpoint
// the client posts its messages to; responses are pushed as "message"
// events. The session is removed when the stream ends for any reason.
func (hs *HTTPServer) handleSSEStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	registry := hs.server.sessions
	sess := registry.Create(hs.queueSize)
	defer registry.Remove(sess.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := fmt.Sprintf("%s?sessionId=%s", messagesPath, sess.ID)
	if err := writeEvent(w, "endpoint", []byte(endpoint)); err != nil {
		hs.logger.Warn("sse write failed", "session_id", sess.ID, "error", err)
		return
	}
	flusher.Flush()
	hs.logger.Info("sse session opened", "session_id", sess.ID)

	ticker := time.NewTicker(hs.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			hs.logger.Info("sse session closed by client", "session_id", sess.ID)
			return
		case <-sess.Done():
			hs.logger.Info("sse session ended", "session_id", sess.ID)
			return
		case msg := <-sess.Outbound():
			if err := writeEvent(w, "message", msg); err != nil {
				hs.logger.Warn("sse write failed", "session_id", sess.ID, "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				hs.logger.Warn("sse keep-alive failed", "session_id", sess.ID, "error", err)
				return
			}
			flusher.Flush()
			registry.Get(sess.ID)
		}
	}
}

func (hs *HTTPServer) handleSSEMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Missing sessionId query parameter", http.StatusBadRequest)
		return
	}

	sess, ok := hs.server.sessions.Get(sessionID)
	if !ok || sess.Outbound() == nil {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid message", http.StatusBadRequest)
		return
	}

	resp := hs.server.HandleRequest(ContextWithSession(r.Context(), sess), &req)
	if resp != nil {
		payload, err := json.Marshal(resp)
		if err != nil {
			hs.logger.Error("marshal response", "session_id", sessionID, "error", err)
			http.Error(w, "Failed to process message", http.StatusInternalServerError)
			return
		}
		if err := sess.Send(r.Context(), payload); err != nil {
			hs.logger.Warn("sse send failed", "session_id", sessionID, "error", err)
			hs.server.sessions.Remove(sessionID)
			http.Error(w, "Session closed", http.StatusGone)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusAccepted)
	io.WriteString(w, "Accepted")
}

// isEventStream reports whether the client asked for an event stream.
func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
