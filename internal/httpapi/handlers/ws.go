package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 25 * time.Second
)

// wsReadTimeout bounds the silence between client frames, not the time spent
// answering one.
var wsReadTimeout = 60 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type inboundFrame struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

var errNotUpgraded = errors.New("websocket not upgraded")

// frameError is a client mistake in a frame; its text is sent back as is.
type frameError string

func (e frameError) Error() string { return string(e) }

// wsConn serializes writes; pushes and answers come from different goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(f outboundFrame) error {
	f.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errNotUpgraded
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(f)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// WebSocket keeps a relay connection open for the socket's lifetime so the
// client receives pushes from its other sessions.
func (h *Handler) WebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := relay.ConnID(uuid.NewString())
	log := h.Log.WithField("conn", id)
	conn, err := h.Actor.Register(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	ws := &wsConn{}
	ready := make(chan struct{})
	w := relay.NewWorker(conn, func(r relay.Response) {
		<-ready
		if frame, ok := pushFrame(r); ok {
			if err := ws.send(frame); err != nil {
				log.WithError(err).Debug("push not delivered")
			}
		}
	})
	defer w.Close()

	email, err := w.ValidateToken(c.Request.Context(), token)
	if err != nil {
		close(ready)
		h.fail(c, err)
		return
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		close(ready)
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer raw.Close()
	ws.conn = raw
	close(ready)

	log = log.WithField("email", email)
	log.Info("websocket connected")
	defer log.Info("websocket closed")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	_ = raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	go pingLoop(ctx, ws)

	s := &wsSession{h: h, w: w, ws: ws, email: email, token: token, log: log}
	for {
		var frame inboundFrame
		if err := raw.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("websocket read error")
			}
			return
		}
		if !s.serve(ctx, frame) {
			return
		}
		// a slow completion must not eat into the next frame's window
		_ = raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

func pingLoop(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}

type wsSession struct {
	h     *Handler
	w     *relay.Worker
	ws    *wsConn
	email string
	token string
	log   logrus.FieldLogger
}

type chatRef struct {
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// serve answers one frame. It returns false when the socket should close.
func (s *wsSession) serve(ctx context.Context, f inboundFrame) (keep bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithField("panic", rec).Error("websocket frame handler panicked")
			keep = false
		}
	}()

	var ref chatRef
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &ref); err != nil {
			return s.reply(f, nil, frameError("invalid data"))
		}
	}

	var data any
	var err error
	switch f.Type {
	case "chats":
		var ids []string
		ids, err = s.w.Chats(ctx, s.email)
		data = gin.H{"chats": ids}
	case "chat":
		var msgs []relay.Message
		msgs, err = s.w.Chat(ctx, s.token, ref.ChatID)
		data = gin.H{"chat_id": ref.ChatID, "messages": toDTOs(msgs)}
	case "new_chat":
		var chatID string
		chatID, err = s.w.NewChat(ctx, s.email)
		data = gin.H{"chat_id": chatID}
	case "new_message":
		if strings.TrimSpace(ref.Content) == "" {
			return s.reply(f, nil, frameError("content required"))
		}
		var reply relay.Message
		reply, err = s.h.ChatSvc.SendMessage(ctx, s.w, s.token, ref.ChatID, ref.Content)
		data = toDTO(reply)
	case "delete_chat":
		err = s.w.DeleteChat(ctx, s.token, ref.ChatID)
		data = gin.H{"chat_id": ref.ChatID}
	default:
		return s.reply(f, nil, frameError("unknown type"))
	}

	if errors.Is(err, relay.ErrBroken) || errors.Is(err, relay.ErrClosed) {
		_ = s.ws.send(outboundFrame{Type: "error", ID: f.ID, Error: classify(err).message})
		return false
	}
	return s.reply(f, data, err)
}

func (s *wsSession) reply(f inboundFrame, data any, err error) bool {
	out := outboundFrame{Type: f.Type, ID: f.ID, Data: data}
	if err != nil {
		out = outboundFrame{Type: "error", ID: f.ID, Error: wsErrorMessage(err)}
	}
	if werr := s.ws.send(out); werr != nil {
		s.log.WithError(werr).Debug("websocket write failed")
		return false
	}
	return true
}

func wsErrorMessage(err error) string {
	var fe frameError
	if errors.As(err, &fe) {
		return string(fe)
	}
	return classify(err).message
}

func pushFrame(r relay.Response) (outboundFrame, bool) {
	switch v := r.(type) {
	case relay.WebMessage:
		return outboundFrame{Type: "push", Data: gin.H{
			"event":   "new_message",
			"chat_id": v.Message.ChatID,
			"message": toDTO(v.Message),
		}}, true
	case relay.ChatCreated:
		return outboundFrame{Type: "push", Data: gin.H{"event": "new_chat", "chat_id": v.ChatID}}, true
	case relay.Deleted:
		return outboundFrame{Type: "push", Data: gin.H{"event": "delete_chat", "chat_id": v.ChatID}}, true
	default:
		return outboundFrame{}, false
	}
}
