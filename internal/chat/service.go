package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Replier produces the assistant's next message for a conversation.
type Replier interface {
	Reply(ctx context.Context, history []ai.Message) (ai.Message, error)
}

// Service runs the send-message flow on behalf of one connection. All state
// changes go through the connection's relay.Worker.
type Service struct {
	replier           Replier
	contextWindowSize int
	systemPrompt      string
	log               logrus.FieldLogger
}

func NewService(replier Replier, contextWindowSize int, systemPrompt string, log logrus.FieldLogger) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{
		replier:           replier,
		contextWindowSize: contextWindowSize,
		systemPrompt:      strings.TrimSpace(systemPrompt),
		log:               log,
	}
}

// SendMessage stores the user's message, asks the completion backend for an
// answer and stores that too. Completion failures are returned wrapped in
// ai.ErrUpstream; the user's message stays stored.
func (s *Service) SendMessage(ctx context.Context, w *relay.Worker, token, chatID, content string) (relay.Message, error) {
	log := s.log.WithFields(logrus.Fields{"conn": w.ConnID(), "chat_id": chatID})

	// 1) store user message
	if _, err := w.PostMessage(ctx, token, chatID, SenderUser, uuid.NewString(), content); err != nil {
		return relay.Message{}, err
	}

	// 2) build provider messages from recent history (ASC)
	history, err := w.Chat(ctx, token, chatID)
	if err != nil {
		return relay.Message{}, err
	}
	if len(history) > s.contextWindowSize {
		history = history[len(history)-s.contextWindowSize:]
	}
	providerMsgs := make([]ai.Message, 0, len(history)+1)
	if s.systemPrompt != "" {
		providerMsgs = append(providerMsgs, ai.Message{Role: "system", Content: s.systemPrompt})
	}
	for _, m := range history {
		providerMsgs = append(providerMsgs, ai.Message{Role: m.Sender, Content: m.Content})
	}

	// 3) call provider
	reply, err := s.replier.Reply(ctx, providerMsgs)
	if err != nil {
		log.WithError(err).Warn("no assistant reply")
		return relay.Message{}, err
	}

	// 4) store assistant message
	assistant := relay.Message{
		ID:      uuid.NewString(),
		ChatID:  chatID,
		Sender:  SenderAssistant,
		Content: reply.Content,
	}
	ts, err := w.PostMessage(ctx, token, chatID, SenderAssistant, assistant.ID, assistant.Content)
	if err != nil {
		return relay.Message{}, err
	}
	assistant.Timestamp = ts
	return assistant, nil
}
