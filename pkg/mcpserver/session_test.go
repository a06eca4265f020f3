package mcpserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionRegistry_SweepExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	var expired []string
	r := NewSessionRegistry(time.Minute,
		WithClock(clock.Now),
		WithOnExpire(func(s *Session) { expired = append(expired, s.ID) }),
	)

	idle := r.Create(1)
	active := r.Create(0)

	clock.Advance(45 * time.Second)
	if _, ok := r.Get(active.ID); !ok {
		t.Fatal("expected active session")
	}
	clock.Advance(30 * time.Second)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if len(expired) != 1 || expired[0] != idle.ID {
		t.Fatalf("unexpected expired sessions: %v", expired)
	}
	if _, ok := r.Get(idle.ID); ok {
		t.Fatal("expired session still registered")
	}
	select {
	case <-idle.Done():
	default:
		t.Fatal("expired session not closed")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", r.Len())
	}
}

func TestSessionRegistry_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := NewSessionRegistry(0, WithClock(clock.Now))
	r.Create(0)
	clock.Advance(24 * time.Hour)
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected no expiry, got %d", n)
	}
}

func TestSessionRegistry_RemoveClosesSession(t *testing.T) {
	r := NewSessionRegistry(time.Minute)
	sess := r.Create(1)

	if !r.Remove(sess.ID) {
		t.Fatal("expected session to be removed")
	}
	if r.Remove(sess.ID) {
		t.Fatal("second remove should report absence")
	}
	if err := sess.Send(context.Background(), []byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionRegistry_RunClosesSessionsOnCancel(t *testing.T) {
	r := NewSessionRegistry(time.Minute)
	sess := r.Create(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
	select {
	case <-sess.Done():
	default:
		t.Fatal("session not closed on shutdown")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestSession_SendWithoutStream(t *testing.T) {
	r := NewSessionRegistry(0)
	sess := r.Create(0)
	if err := sess.Send(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error for session without stream")
	}
}

func TestCompileTemplate(t *testing.T) {
	pattern, names := compileTemplate("doctor://{id}/slots")
	if len(names) != 1 || names[0] != "id" {
		t.Fatalf("unexpected names: %v", names)
	}
	if !pattern.MatchString("doctor://6f1c2a3e/slots") {
		t.Fatal("expected match")
	}
	if pattern.MatchString("doctor://list") {
		t.Fatal("unexpected match")
	}
}
