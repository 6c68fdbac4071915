package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

// Publisher ships one event to an external bus.
type Publisher interface {
	Publish(ctx context.Context, ev relay.Event) error
	Close() error
}

// Forwarder decouples the actor from the bus: Emit never blocks, and events
// are dropped when the buffer is full.
type Forwarder struct {
	pub     Publisher
	queue   chan relay.Event
	log     logrus.FieldLogger
	timeout time.Duration
	dropped atomic.Int64
}

func NewForwarder(pub Publisher, buffer int, log logrus.FieldLogger) *Forwarder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Forwarder{
		pub:     pub,
		queue:   make(chan relay.Event, buffer),
		log:     log,
		timeout: 5 * time.Second,
	}
}

func (f *Forwarder) Emit(ev relay.Event) {
	select {
	case f.queue <- ev:
	default:
		if n := f.dropped.Add(1); n == 1 || n%100 == 0 {
			f.log.WithField("dropped", n).Warn("event buffer full, dropping events")
		}
	}
}

func (f *Forwarder) Dropped() int64 { return f.dropped.Load() }

// Run publishes queued events until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.queue:
			f.publish(ctx, ev)
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, ev relay.Event) {
	pctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.pub.Publish(pctx, ev); err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{"event": ev.Type, "chat_id": ev.ChatID}).Warn("publish event failed")
	}
}
