package relay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMailboxFIFO(t *testing.T) {
	m := newMailbox()
	for i := 0; i < 100; i++ {
		m.push(Timestamp{At: int64(i)})
	}
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		r, err := m.recv(ctx)
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if got := r.(Timestamp).At; got != int64(i) {
			t.Fatalf("out of order: want %d got %d", i, got)
		}
	}
}

func TestMailboxRecvWakesOnPush(t *testing.T) {
	m := newMailbox()
	got := make(chan Response, 1)
	go func() {
		r, _ := m.recv(context.Background())
		got <- r
	}()

	time.Sleep(10 * time.Millisecond)
	m.push(Chats{IDs: []string{"c1"}})

	select {
	case r := <-got:
		if _, ok := r.(Chats); !ok {
			t.Fatalf("unexpected response %T", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not wake up")
	}
}

func TestMailboxCloseDrainsFirst(t *testing.T) {
	m := newMailbox()
	m.push(Chats{})
	m.close()
	if m.push(Chats{}) {
		t.Fatal("push after close must be rejected")
	}

	if _, err := m.recv(context.Background()); err != nil {
		t.Fatalf("queued response lost: %v", err)
	}
	if _, err := m.recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMailboxRecvHonoursContext(t *testing.T) {
	m := newMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSessionIndexRebind(t *testing.T) {
	s := newSessionIndex()
	s.bind("c1", "a@x.io")
	s.bind("c2", "a@x.io")
	s.bind("c1", "b@x.io")

	if email, _ := s.emailOf("c1"); email != "b@x.io" {
		t.Fatalf("c1 should be rebound, got %q", email)
	}
	if _, ok := s.members("a@x.io")["c1"]; ok {
		t.Fatal("c1 must belong to one email only")
	}
	if len(s.members("a@x.io")) != 1 {
		t.Fatalf("unexpected members: %v", s.members("a@x.io"))
	}

	s.remove("c2")
	if _, ok := s.byEmail["a@x.io"]; ok {
		t.Fatal("empty email set must be dropped")
	}
	if _, ok := s.emailOf("c2"); ok {
		t.Fatal("c2 should be gone")
	}
}

func TestIsPush(t *testing.T) {
	if !IsPush(WebMessage{Origin: "me"}, "me") {
		t.Fatal("web messages are always pushes")
	}
	if IsPush(ChatCreated{Origin: "me"}, "me") {
		t.Fatal("own chat creation is the direct answer")
	}
	if !IsPush(ChatCreated{Origin: "other"}, "me") {
		t.Fatal("foreign chat creation is a push")
	}
	if IsPush(Deleted{Origin: "me"}, "me") || !IsPush(Deleted{Origin: "other"}, "me") {
		t.Fatal("deleted classification wrong")
	}
	if IsPush(Err{Kind: ErrAuth}, "me") {
		t.Fatal("errors are never pushes")
	}
}
