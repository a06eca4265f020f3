package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionClosed is returned by Session.Send after the session ended.
var ErrSessionClosed = errors.New("mcp session closed")

// Session is one client connection. Sessions created for the SSE transport
// carry an outbound message queue; streamable HTTP sessions do not.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, now time.Time, queue int) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
		done:      make(chan struct{}),
	}
	if queue > 0 {
		s.outbound = make(chan []byte, queue)
	}
	return s
}

// Send queues msg for the session's stream.
func (s *Session) Send(ctx context.Context, msg []byte) error {
	if s.outbound == nil {
		return fmt.Errorf("session %s has no stream", s.ID)
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outbound returns the queue drained by the stream writer.
func (s *Session) Outbound() <-chan []byte { return s.outbound }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

type sessionKey struct{}

// ContextWithSession attaches sess to ctx.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session bound to ctx, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}

// SessionRegistry tracks live sessions. Idle sessions older than the TTL are
// removed by Sweep, which the janitor started with Run calls periodically.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl      time.Duration
	onExpire func(*Session)
	now      func() time.Time
	logger   *slog.Logger
}

// RegistryOption configures a SessionRegistry.
type RegistryOption func(*SessionRegistry)

// WithOnExpire registers a hook called for every session removed by Sweep.
func WithOnExpire(fn func(*Session)) RegistryOption {
	return func(r *SessionRegistry) { r.onExpire = fn }
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *SessionRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) { r.now = now }
}

// NewSessionRegistry creates a registry. A ttl of zero disables expiry.
func NewSessionRegistry(ttl time.Duration, opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new session. queue > 0 gives it an outbound stream.
func (r *SessionRegistry) Create(queue int) *Session {
	sess := newSession(generateSessionID(), r.now(), queue)
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.touch(r.now())
	return sess, true
}

// Remove ends and forgets the session. It reports whether it was present.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		sess.close()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were expired.
func (r *SessionRegistry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	var expired []*Session
	r.mu.Lock()
	for id, sess := range r.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.close()
		if r.onExpire != nil {
			r.onExpire(sess)
		}
		r.logger.Info("mcp session expired", "session_id", sess.ID)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *SessionRegistry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
}

func generateSessionID() string {
	return uuid.NewString()
}
