package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/auth"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"gorm.io/gorm"
)

type recordingReplier struct {
	last  []ai.Message
	reply string
	err   error
}

func (p *recordingReplier) Reply(ctx context.Context, messages []ai.Message) (ai.Message, error) {
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	if p.err != nil {
		return ai.Message{}, p.err
	}
	return ai.Message{Role: "assistant", Content: p.reply}, nil
}

// startSession runs an actor over db and returns a logged-in worker with one chat.
func startSession(t *testing.T, db *gorm.DB) (w *relay.Worker, token, chatID string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	actor := relay.New(NewRepo(db), auth.NewSigner("test-secret"), relay.WithLogger(logging.Discard()))
	go func() { _ = actor.Run(ctx) }()
	t.Cleanup(cancel)

	conn, err := actor.Register(ctx, relay.ConnID(t.Name()))
	if err != nil {
		t.Fatalf("register conn: %v", err)
	}
	w = relay.NewWorker(conn, nil)
	t.Cleanup(w.Close)

	reqCtx, done := context.WithTimeout(ctx, 5*time.Second)
	defer done()
	if _, err := w.Register(reqCtx, "Ana", "ana@x.io", "password123"); err != nil {
		t.Fatalf("register user: %v", err)
	}
	info, err := w.Login(reqCtx, "ana@x.io", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	chatID, err = w.NewChat(reqCtx, "ana@x.io")
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	return w, info.Token, chatID
}

func TestSendMessage_WritesUserAndAssistant(t *testing.T) {
	db := openTestDB(t)
	w, token, chatID := startSession(t, db)

	prov := &recordingReplier{reply: "ok"}
	svc := NewService(prov, 20, "be brief", logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := svc.SendMessage(ctx, w, token, chatID, "Hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if reply.Content != "ok" || reply.Sender != SenderAssistant {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.ID == "" || reply.Timestamp == 0 {
		t.Fatalf("expected assistant id and timestamp to be set: %+v", reply)
	}

	var msgs []Message
	if err := db.Where("chat_id = ?", chatID).Order("timestamp ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != SenderUser || msgs[0].Content != "Hello" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Sender != SenderAssistant || msgs[1].Content != "ok" {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
	if msgs[0].Timestamp >= msgs[1].Timestamp {
		t.Fatalf("timestamps not increasing: %d, %d", msgs[0].Timestamp, msgs[1].Timestamp)
	}

	if len(prov.last) != 2 || prov.last[0].Role != "system" || prov.last[1].Content != "Hello" {
		t.Fatalf("unexpected provider input: %+v", prov.last)
	}
}

func TestSendMessage_UsesContextWindow(t *testing.T) {
	db := openTestDB(t)
	w, token, chatID := startSession(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		if _, err := w.PostMessage(ctx, token, chatID, SenderUser, fmt.Sprintf("m%d", i), fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	prov := &recordingReplier{reply: "ok"}
	svc := NewService(prov, 4, "", logging.Discard())
	if _, err := svc.SendMessage(ctx, w, token, chatID, "latest"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	if len(prov.last) != 4 {
		t.Fatalf("expected 4 context messages, got %d", len(prov.last))
	}
	if prov.last[0].Content != "msg 7" || prov.last[3].Content != "latest" {
		t.Fatalf("unexpected window: %+v", prov.last)
	}
}

func TestSendMessage_UpstreamFailureKeepsUserMessage(t *testing.T) {
	db := openTestDB(t)
	w, token, chatID := startSession(t, db)

	prov := &recordingReplier{err: fmt.Errorf("%w: timeout", ai.ErrUpstream)}
	svc := NewService(prov, 20, "", logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := svc.SendMessage(ctx, w, token, chatID, "Hello")
	if !errors.Is(err, ai.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	var n int64
	if err := db.Model(&Message{}).Where("chat_id = ?", chatID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the user message, got %d rows", n)
	}
}

func TestSendMessage_UnknownChat(t *testing.T) {
	db := openTestDB(t)
	w, token, _ := startSession(t, db)

	svc := NewService(&recordingReplier{reply: "ok"}, 20, "", logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := svc.SendMessage(ctx, w, token, "01NOTACHAT0000000000000000", "Hello")
	if !relay.IsKind(err, relay.ErrNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
