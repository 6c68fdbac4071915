package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/auth"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type slowReplier struct {
	delay time.Duration
}

func (s slowReplier) Reply(ctx context.Context, history []ai.Message) (ai.Message, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ai.Message{}, ctx.Err()
	}
	return ai.Message{Role: "assistant", Content: "late"}, nil
}

type wsFrame struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Data  map[string]any `json:"data"`
	Error string         `json:"error"`
}

func TestWebSocketSurvivesSlowCompletion(t *testing.T) {
	prev := wsReadTimeout
	wsReadTimeout = 200 * time.Millisecond
	t.Cleanup(func() { wsReadTimeout = prev })
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open("file:ws_slow?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(chat.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	log := logging.Discard()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	actor := relay.New(chat.NewRepo(db), auth.NewSigner("test"), relay.WithLogger(log))
	go func() { _ = actor.Run(ctx) }()

	conn, err := actor.Register(ctx, "setup")
	if err != nil {
		t.Fatalf("register conn: %v", err)
	}
	w := relay.NewWorker(conn, nil)
	issued, err := w.Register(ctx, "Ana", "ana@x.io", "password123")
	w.Close()
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	h := NewHandler(actor, chat.NewService(slowReplier{delay: 3 * wsReadTimeout}, 20, "", log), nil, log)
	r := gin.New()
	r.GET("/ws", h.WebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + issued.Token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	roundTrip := func(req map[string]any) wsFrame {
		t.Helper()
		if err := ws.WriteJSON(req); err != nil {
			t.Fatalf("write %v: %v", req["type"], err)
		}
		var out wsFrame
		if err := ws.ReadJSON(&out); err != nil {
			t.Fatalf("read %v: %v", req["type"], err)
		}
		if out.Type == "error" {
			t.Fatalf("%v failed: %s", req["type"], out.Error)
		}
		return out
	}

	created := roundTrip(map[string]any{"type": "new_chat", "id": "1"})
	chatID, _ := created.Data["chat_id"].(string)

	reply := roundTrip(map[string]any{"type": "new_message", "id": "2",
		"data": map[string]any{"chat_id": chatID, "content": "hi"}})
	if reply.Data["content"] != "late" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	// the socket is still open after a completion longer than the read timeout
	listed := roundTrip(map[string]any{"type": "chats", "id": "3"})
	if chats, _ := listed.Data["chats"].([]any); len(chats) != 1 {
		t.Fatalf("unexpected chats %+v", listed.Data)
	}
}
