package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/auth"
)

func (a *Actor) handle(ctx context.Context, req Request) {
	log := a.log.WithFields(logrus.Fields{"request": req.Kind(), "conn": req.origin()})
	failed := false
	a.answered = false
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("request handler panicked")
			failed = true
			// a request that already answered must not get a second answer
			if id := req.origin(); id != "" && !a.answered {
				a.reply(id, Err{Kind: ErrStore})
			}
		}
		a.metrics.RequestHandled(req.Kind(), failed)
	}()

	var resp Response
	switch r := req.(type) {
	case Login:
		resp = a.login(ctx, log, r)
	case RegisterUser:
		resp = a.registerUser(ctx, log, r)
	case TokenValidation:
		resp = a.validateToken(ctx, log, r)
	case NewChat:
		resp = a.newChat(ctx, log, r)
	case ChatRequest:
		resp = a.chatRequest(ctx, log, r)
	case NewMessage:
		resp = a.newMessage(ctx, log, r)
	case GetChats:
		resp = a.getChats(ctx, log, r)
	case DeleteChat:
		resp = a.deleteChat(ctx, log, r)
	case GetMessage:
		resp = a.getMessage(ctx, log, r)
	case GetAudioPath:
		resp = a.getAudioPath(ctx, log, r)
	case RecordAudioPath:
		if err := a.store.RecordAudioPath(ctx, r.MessageID, r.Path); err != nil {
			log.WithError(err).WithField("message_id", r.MessageID).Error("record audio path failed")
			failed = true
		}
		return
	case PurgeExpiredTokens:
		n, err := a.store.PurgeExpiredTokens(ctx, a.now())
		if err != nil {
			log.WithError(err).Error("purge expired tokens failed")
			failed = true
			return
		}
		log.WithField("deleted", n).Debug("expired tokens purged")
		return
	default:
		log.Warnf("unknown request type %T", req)
		failed = true
		return
	}

	if _, isErr := resp.(Err); isErr {
		failed = true
	}
	// nil means the handler already answered
	if resp != nil {
		a.reply(req.origin(), resp)
	}
}

func (a *Actor) storeFailure(log logrus.FieldLogger, op string, err error) Err {
	log.WithError(err).Errorf("store %s failed", op)
	return Err{Kind: ErrStore}
}

func (a *Actor) login(ctx context.Context, log logrus.FieldLogger, r Login) Response {
	log = log.WithField("email", r.Email)
	ok, err := a.store.VerifyUser(ctx, r.Email, r.Password)
	if err != nil {
		return a.storeFailure(log, "verify user", err)
	}
	if !ok {
		return Err{Kind: ErrAuth}
	}

	token, err := a.liveToken(ctx, r.Email)
	if err != nil {
		return a.storeFailure(log, "issue token", err)
	}
	name, _, err := a.store.UserName(ctx, r.Email)
	if err != nil {
		return a.storeFailure(log, "user name", err)
	}

	a.sessions.bind(r.Conn, r.Email)
	return UserInfo{Email: r.Email, Name: name, Token: token}
}

func (a *Actor) registerUser(ctx context.Context, log logrus.FieldLogger, r RegisterUser) Response {
	log = log.WithField("email", r.Email)
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return Err{Kind: ErrInvalid}
	}
	exists, err := a.store.UserExists(ctx, r.Email)
	if err != nil {
		return a.storeFailure(log, "user exists", err)
	}
	if exists {
		return Err{Kind: ErrConflict}
	}

	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return a.storeFailure(log, "hash password", err)
	}
	if err := a.store.InsertUser(ctx, r.Email, r.Name, hash); err != nil {
		return a.storeFailure(log, "insert user", err)
	}
	token, err := a.mintToken(ctx, r.Email)
	if err != nil {
		return a.storeFailure(log, "mint token", err)
	}

	a.events.Emit(Event{Type: EventUserRegistered, Email: r.Email, At: a.now()})
	return TokenIssued{Token: token}
}

func (a *Actor) validateToken(ctx context.Context, log logrus.FieldLogger, r TokenValidation) Response {
	email, errResp := a.resolveToken(ctx, log, r.Token)
	if errResp != nil {
		return *errResp
	}
	a.sessions.bind(r.Conn, email)
	return EmailResolved{Email: email}
}

func (a *Actor) newChat(ctx context.Context, log logrus.FieldLogger, r NewChat) Response {
	if email, ok := a.sessions.emailOf(r.Conn); !ok || email != r.Email {
		return Err{Kind: ErrAuth}
	}
	chatID, err := a.store.InsertChat(ctx, r.Email)
	if err != nil {
		return a.storeFailure(log, "insert chat", err)
	}

	// the requester is one of the members, so this is also its answer
	a.fanOut(r.Email, "", r.Kind(), ChatCreated{ChatID: chatID, Origin: r.Conn})
	a.answered = true
	a.events.Emit(Event{Type: EventChatCreated, Email: r.Email, ChatID: chatID, At: a.now()})
	return nil
}

func (a *Actor) chatRequest(ctx context.Context, log logrus.FieldLogger, r ChatRequest) Response {
	email, errResp := a.resolveOwnedChat(ctx, log, r.Token, r.ChatID)
	if errResp != nil {
		return *errResp
	}
	items, err := a.store.ListRecentMessages(ctx, email, r.ChatID, a.historyLimit)
	if err != nil {
		return a.storeFailure(log, "list messages", err)
	}
	return Messages{ChatID: r.ChatID, Items: items}
}

func (a *Actor) newMessage(ctx context.Context, log logrus.FieldLogger, r NewMessage) Response {
	log = log.WithFields(logrus.Fields{"chat_id": r.ChatID, "message_id": r.MessageID})
	if r.MessageID == "" || r.Sender == "" {
		return Err{Kind: ErrInvalid}
	}
	email, errResp := a.resolveOwnedChat(ctx, log, r.Token, r.ChatID)
	if errResp != nil {
		return *errResp
	}

	existing, found, err := a.store.FindMessage(ctx, r.MessageID)
	if err != nil {
		return a.storeFailure(log, "find message", err)
	}
	if found {
		if existing.Email != email || existing.ChatID != r.ChatID {
			return Err{Kind: ErrConflict}
		}
		return Timestamp{ChatID: existing.ChatID, MessageID: existing.ID, At: existing.Timestamp}
	}

	msg := Message{
		ID:        r.MessageID,
		ChatID:    r.ChatID,
		Email:     email,
		Sender:    r.Sender,
		Content:   r.Content,
		Timestamp: a.nextTimestamp(),
	}
	if err := a.store.InsertMessage(ctx, msg); err != nil {
		return a.storeFailure(log, "insert message", err)
	}

	a.reply(r.Conn, Timestamp{ChatID: msg.ChatID, MessageID: msg.ID, At: msg.Timestamp})
	a.fanOut(email, r.Conn, r.Kind(), WebMessage{Message: msg, Origin: r.Conn})
	a.events.Emit(Event{Type: EventMessageCreated, Email: email, ChatID: msg.ChatID, MessageID: msg.ID, Sender: msg.Sender, At: a.now()})
	return nil
}

func (a *Actor) getChats(ctx context.Context, log logrus.FieldLogger, r GetChats) Response {
	if email, ok := a.sessions.emailOf(r.Conn); !ok || email != r.Email {
		return Err{Kind: ErrAuth}
	}
	ids, err := a.store.ListChats(ctx, r.Email)
	if err != nil {
		return a.storeFailure(log, "list chats", err)
	}
	return Chats{IDs: ids}
}

func (a *Actor) deleteChat(ctx context.Context, log logrus.FieldLogger, r DeleteChat) Response {
	log = log.WithField("chat_id", r.ChatID)
	email, errResp := a.resolveOwnedChat(ctx, log, r.Token, r.ChatID)
	if errResp != nil {
		return *errResp
	}
	if err := a.store.DeleteMessages(ctx, email, r.ChatID); err != nil {
		return a.storeFailure(log, "delete messages", err)
	}
	if err := a.store.DeleteChat(ctx, email, r.ChatID); err != nil {
		return a.storeFailure(log, "delete chat", err)
	}

	deleted := Deleted{ChatID: r.ChatID, Origin: r.Conn}
	a.reply(r.Conn, deleted)
	a.fanOut(email, r.Conn, r.Kind(), deleted)
	a.events.Emit(Event{Type: EventChatDeleted, Email: email, ChatID: r.ChatID, At: a.now()})
	return nil
}

func (a *Actor) getMessage(ctx context.Context, log logrus.FieldLogger, r GetMessage) Response {
	email, ok := a.sessions.emailOf(r.Conn)
	if !ok {
		return Err{Kind: ErrAuth}
	}
	msg, found, err := a.store.FindMessage(ctx, r.MessageID)
	if err != nil {
		return a.storeFailure(log, "find message", err)
	}
	if !found || msg.Email != email {
		return Err{Kind: ErrNotFound}
	}
	return MessageContent{MessageID: msg.ID, Content: msg.Content}
}

func (a *Actor) getAudioPath(ctx context.Context, log logrus.FieldLogger, r GetAudioPath) Response {
	path, found, err := a.store.GetAudioPath(ctx, r.MessageID)
	if err != nil {
		return a.storeFailure(log, "get audio path", err)
	}
	if !found {
		return Err{Kind: ErrNotFound}
	}
	return AudioPath{MessageID: r.MessageID, Path: path}
}

// resolveToken returns the email owning a live token.
func (a *Actor) resolveToken(ctx context.Context, log logrus.FieldLogger, token string) (string, *Err) {
	if _, err := a.signer.Verify(token); err != nil {
		return "", &Err{Kind: ErrAuth}
	}
	rec, found, err := a.store.FindEmailByToken(ctx, token)
	if err != nil {
		e := a.storeFailure(log, "find token", err)
		return "", &e
	}
	if !found || !a.now().Before(rec.ExpiresAt) {
		return "", &Err{Kind: ErrAuth}
	}
	return rec.Email, nil
}

func (a *Actor) resolveOwnedChat(ctx context.Context, log logrus.FieldLogger, token, chatID string) (string, *Err) {
	email, errResp := a.resolveToken(ctx, log, token)
	if errResp != nil {
		return "", errResp
	}
	owned, err := a.store.HasChat(ctx, email, chatID)
	if err != nil {
		e := a.storeFailure(log, "has chat", err)
		return "", &e
	}
	if !owned {
		return "", &Err{Kind: ErrNotFound}
	}
	return email, nil
}

// liveToken returns the unexpired token of email, minting a new one otherwise.
func (a *Actor) liveToken(ctx context.Context, email string) (string, error) {
	rec, found, err := a.store.FindToken(ctx, email)
	if err != nil {
		return "", err
	}
	if found && a.now().Before(rec.ExpiresAt) {
		return rec.Token, nil
	}
	return a.mintToken(ctx, email)
}

// mintToken replaces every token of email with a fresh one.
func (a *Actor) mintToken(ctx context.Context, email string) (string, error) {
	if err := a.store.DeleteTokens(ctx, email); err != nil {
		return "", err
	}
	now := a.now()
	exp := now.Add(a.tokenTTL)
	token, err := a.signer.Mint(email, now, exp)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	if err := a.store.InsertToken(ctx, TokenRecord{Token: token, Email: email, ExpiresAt: exp}); err != nil {
		return "", err
	}
	return token, nil
}
