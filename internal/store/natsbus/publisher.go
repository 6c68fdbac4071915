package natsbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

// Publisher sends relay events to "<prefix>.<event type>".
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("chat-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, prefix: prefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev relay.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(p.prefix, ev.Type), body)
}

func (p *Publisher) Close() error {
	return p.nc.Drain()
}

func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
