package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrUnexpectedResponse = errors.New("relay: unexpected response")

// PushFunc receives responses caused by other sessions. It runs on the
// worker's pump goroutine.
type PushFunc func(Response)

// Worker drives one connection: Do sends a request and waits for its answer
// while pushes are handed to the PushFunc as they arrive.
type Worker struct {
	conn    *Conn
	onPush  PushFunc
	answers chan Response
	cancel  context.CancelFunc
	stopped chan struct{}

	mu     sync.Mutex
	broken bool
}

func NewWorker(conn *Conn, onPush PushFunc) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		conn:    conn,
		onPush:  onPush,
		answers: make(chan Response, 1),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go w.pump(ctx)
	return w
}

func (w *Worker) ConnID() ConnID { return w.conn.ID() }

func (w *Worker) pump(ctx context.Context) {
	defer close(w.stopped)
	defer close(w.answers)
	for {
		r, err := w.conn.Recv(ctx)
		if err != nil {
			return
		}
		if IsPush(r, w.conn.ID()) {
			if w.onPush != nil {
				w.onPush(r)
			}
			continue
		}
		select {
		case w.answers <- r:
		case <-ctx.Done():
			return
		}
	}
}

// Do submits req and returns its direct answer. If ctx ends while waiting,
// the worker is marked broken and rejects further calls with ErrBroken.
func (w *Worker) Do(ctx context.Context, req Request) (Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken {
		return nil, ErrBroken
	}
	if err := w.conn.Submit(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r, ok := <-w.answers:
		if !ok {
			return nil, ErrClosed
		}
		return r, nil
	case <-ctx.Done():
		w.broken = true
		return nil, ctx.Err()
	}
}

// Send submits a request that has no answer.
func (w *Worker) Send(ctx context.Context, req Request) error {
	return w.conn.Submit(ctx, req)
}

// Close unregisters the connection and waits for the pump to exit.
func (w *Worker) Close() {
	w.conn.Close()
	w.cancel()
	<-w.stopped
}

// expect narrows an answer to T, turning Err into an error.
func expect[T Response](resp Response, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v, ok := resp.(T); ok {
		return v, nil
	}
	if e, ok := resp.(Err); ok {
		return zero, e
	}
	return zero, fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp)
}

func (w *Worker) Login(ctx context.Context, email, password string) (UserInfo, error) {
	return expect[UserInfo](w.Do(ctx, Login{Conn: w.ConnID(), Email: email, Password: password}))
}

func (w *Worker) Register(ctx context.Context, name, email, password string) (TokenIssued, error) {
	return expect[TokenIssued](w.Do(ctx, RegisterUser{Conn: w.ConnID(), Name: name, Email: email, Password: password}))
}

// ValidateToken binds the connection to the token's owner and returns the email.
func (w *Worker) ValidateToken(ctx context.Context, token string) (string, error) {
	r, err := expect[EmailResolved](w.Do(ctx, TokenValidation{Conn: w.ConnID(), Token: token}))
	return r.Email, err
}

func (w *Worker) NewChat(ctx context.Context, email string) (string, error) {
	r, err := expect[ChatCreated](w.Do(ctx, NewChat{Conn: w.ConnID(), Email: email}))
	return r.ChatID, err
}

func (w *Worker) Chat(ctx context.Context, token, chatID string) ([]Message, error) {
	r, err := expect[Messages](w.Do(ctx, ChatRequest{Conn: w.ConnID(), Token: token, ChatID: chatID}))
	return r.Items, err
}

func (w *Worker) PostMessage(ctx context.Context, token, chatID, sender, messageID, content string) (int64, error) {
	r, err := expect[Timestamp](w.Do(ctx, NewMessage{
		Conn:      w.ConnID(),
		Token:     token,
		Sender:    sender,
		ChatID:    chatID,
		Content:   content,
		MessageID: messageID,
	}))
	return r.At, err
}

func (w *Worker) Chats(ctx context.Context, email string) ([]string, error) {
	r, err := expect[Chats](w.Do(ctx, GetChats{Conn: w.ConnID(), Email: email}))
	return r.IDs, err
}

func (w *Worker) DeleteChat(ctx context.Context, token, chatID string) error {
	_, err := expect[Deleted](w.Do(ctx, DeleteChat{Conn: w.ConnID(), Token: token, ChatID: chatID}))
	return err
}

func (w *Worker) MessageContent(ctx context.Context, messageID string) (string, error) {
	r, err := expect[MessageContent](w.Do(ctx, GetMessage{Conn: w.ConnID(), MessageID: messageID}))
	return r.Content, err
}

// AudioPath returns ok=false on a cache miss.
func (w *Worker) AudioPath(ctx context.Context, messageID string) (string, bool, error) {
	r, err := expect[AudioPath](w.Do(ctx, GetAudioPath{Conn: w.ConnID(), MessageID: messageID}))
	var e Err
	if errors.As(err, &e) && e.Kind == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return r.Path, true, nil
}

func (w *Worker) RecordAudioPath(ctx context.Context, messageID, path string) error {
	return w.Send(ctx, RecordAudioPath{MessageID: messageID, Path: path})
}

// IsKind reports whether err is an Err of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var e Err
	return errors.As(err, &e) && e.Kind == kind
}
