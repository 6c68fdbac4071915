package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrUpstream marks any failure of the completion backend.
var ErrUpstream = errors.New("completion upstream failed")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a chat completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Completion turns a conversation into the next assistant message.
type Completion struct {
	provider Provider
	log      logrus.FieldLogger
}

func NewCompletion(p Provider, log logrus.FieldLogger) *Completion {
	return &Completion{provider: p, log: log}
}

// Reply returns the assistant's answer. Every failure, including an empty
// answer, is wrapped in ErrUpstream.
func (c *Completion) Reply(ctx context.Context, history []Message) (Message, error) {
	start := time.Now()
	text, err := c.provider.Chat(ctx, history)
	if err != nil {
		c.log.WithError(err).WithField("messages", len(history)).Warn("completion failed")
		return Message{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: empty reply", ErrUpstream)
	}
	c.log.WithFields(logrus.Fields{
		"messages": len(history),
		"took_ms":  time.Since(start).Milliseconds(),
	}).Debug("completion done")
	return Message{Role: "assistant", Content: text}, nil
}
