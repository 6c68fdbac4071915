package relay

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultTokenTTL     = 24 * time.Hour
	defaultHistoryLimit = 50
	requestInbox        = 256
)

// Event describes a change to shared state, emitted after it is persisted.
type Event struct {
	Type      string    `json:"type"`
	Email     string    `json:"email"`
	ChatID    string    `json:"chat_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventUserRegistered = "user.registered"
	EventChatCreated    = "chat.created"
	EventChatDeleted    = "chat.deleted"
	EventMessageCreated = "message.created"
)

// EventSink receives events from the actor goroutine and must not block.
type EventSink interface {
	Emit(Event)
}

// Metrics is called from the actor goroutine.
type Metrics interface {
	RequestHandled(kind string, failed bool)
	PushesDelivered(kind string, n int)
	ConnectionsChanged(delta int)
}

type noopEvents struct{}

func (noopEvents) Emit(Event) {}

type noopMetrics struct{}

func (noopMetrics) RequestHandled(string, bool) {}
func (noopMetrics) PushesDelivered(string, int) {}
func (noopMetrics) ConnectionsChanged(int)      {}

type Option func(*Actor)

// WithClock replaces time.Now, for token expiry and message timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Actor) { a.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Actor) { a.log = log }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(a *Actor) {
		if ttl > 0 {
			a.tokenTTL = ttl
		}
	}
}

// WithHistoryLimit caps the messages returned for a ChatRequest.
func WithHistoryLimit(n int) Option {
	return func(a *Actor) {
		if n > 0 {
			a.historyLimit = n
		}
	}
}

func WithEvents(sink EventSink) Option {
	return func(a *Actor) {
		if sink != nil {
			a.events = sink
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(a *Actor) {
		if m != nil {
			a.metrics = m
		}
	}
}
