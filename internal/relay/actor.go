package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/auth"
)

var (
	ErrClosed        = errors.New("relay: closed")
	ErrDuplicateConn = errors.New("relay: connection id already registered")
	ErrBroken        = errors.New("relay: worker abandoned an exchange")
)

type registration struct {
	id    ConnID
	reply chan registrationResult
}

type registrationResult struct {
	conn *Conn
	err  error
}

// Actor is the single writer over the Store. Run owns the mailboxes and the
// session index; everything else talks to it through channels.
type Actor struct {
	store  Store
	signer *auth.Signer

	log          logrus.FieldLogger
	now          func() time.Time
	tokenTTL     time.Duration
	historyLimit int
	events       EventSink
	metrics      Metrics

	registrations chan registration
	departures    chan ConnID
	requests      chan Request
	done          chan struct{}

	// owned by Run
	mailboxes map[ConnID]*mailbox
	sessions  *sessionIndex
	lastTS    int64
	// answered is set once the request being handled has replied to its origin
	answered bool
}

func New(store Store, signer *auth.Signer, opts ...Option) *Actor {
	a := &Actor{
		store:        store,
		signer:       signer,
		log:          logrus.StandardLogger(),
		now:          time.Now,
		tokenTTL:     defaultTokenTTL,
		historyLimit: defaultHistoryLimit,
		events:       noopEvents{},
		metrics:      noopMetrics{},

		registrations: make(chan registration),
		departures:    make(chan ConnID, 64),
		requests:      make(chan Request, requestInbox),
		done:          make(chan struct{}),

		mailboxes: make(map[ConnID]*mailbox),
		sessions:  newSessionIndex(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run processes registrations, departures and requests until ctx is done.
// It must be called exactly once.
func (a *Actor) Run(ctx context.Context) error {
	defer close(a.done)
	defer a.shutdown()

	a.log.Info("storage actor started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info("storage actor stopping")
			return ctx.Err()
		case reg := <-a.registrations:
			a.register(reg)
		case id := <-a.departures:
			a.unregister(id)
		case req := <-a.requests:
			a.drainDepartures()
			a.handle(ctx, req)
		}
	}
}

// drainDepartures applies pending departures so that a connection closed
// before a request was submitted never receives its fan-out.
func (a *Actor) drainDepartures() {
	for {
		select {
		case id := <-a.departures:
			a.unregister(id)
		default:
			return
		}
	}
}

// Register allocates the reply mailbox for id. Requests for id are only
// possible through the returned Conn, so none can precede the registration.
func (a *Actor) Register(ctx context.Context, id ConnID) (*Conn, error) {
	reply := make(chan registrationResult, 1)
	select {
	case a.registrations <- registration{id: id, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, ErrClosed
	}

	select {
	case res := <-reply:
		return res.conn, res.err
	case <-a.done:
		return nil, ErrClosed
	case <-ctx.Done():
		// the actor accepted the registration; release it once it answers
		go func() {
			if res := <-reply; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Submit enqueues req. It blocks only while the inbox is full.
func (a *Actor) Submit(ctx context.Context, req Request) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	select {
	case a.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}
}

func (a *Actor) register(reg registration) {
	if _, ok := a.mailboxes[reg.id]; ok {
		reg.reply <- registrationResult{err: fmt.Errorf("%w: %s", ErrDuplicateConn, reg.id)}
		return
	}
	box := newMailbox()
	a.mailboxes[reg.id] = box
	a.metrics.ConnectionsChanged(1)
	a.log.WithField("conn", reg.id).Debug("connection registered")
	reg.reply <- registrationResult{conn: &Conn{id: reg.id, box: box, actor: a}}
}

func (a *Actor) unregister(id ConnID) {
	box, ok := a.mailboxes[id]
	if !ok {
		return
	}
	delete(a.mailboxes, id)
	a.sessions.remove(id)
	box.close()
	a.metrics.ConnectionsChanged(-1)
	a.log.WithField("conn", id).Debug("connection closed")
}

func (a *Actor) shutdown() {
	for id, box := range a.mailboxes {
		box.close()
		delete(a.mailboxes, id)
	}
}

// reply appends the answer to the current request to the mailbox of id, if
// it is still live.
func (a *Actor) reply(id ConnID, r Response) {
	box, ok := a.mailboxes[id]
	if !ok {
		a.log.WithField("conn", id).Debug("reply for departed connection dropped")
		return
	}
	a.answered = true
	box.push(r)
}

// fanOut pushes r to every session of email except skip.
func (a *Actor) fanOut(email string, skip ConnID, kind string, r Response) {
	n := 0
	for id := range a.sessions.members(email) {
		if id == skip {
			continue
		}
		if box, ok := a.mailboxes[id]; ok && box.push(r) {
			n++
		}
	}
	if n > 0 {
		a.metrics.PushesDelivered(kind, n)
	}
}

// nextTimestamp returns unix milliseconds, strictly greater than the last one issued.
func (a *Actor) nextTimestamp() int64 {
	ts := a.now().UnixMilli()
	if ts <= a.lastTS {
		ts = a.lastTS + 1
	}
	a.lastTS = ts
	return ts
}

// Conn is a registered connection. Requests go through Submit, every answer
// and push arrives on Recv in the order the actor produced them.
type Conn struct {
	id    ConnID
	box   *mailbox
	actor *Actor
	once  sync.Once
}

func (c *Conn) ID() ConnID { return c.id }

func (c *Conn) Submit(ctx context.Context, req Request) error {
	return c.actor.Submit(ctx, req)
}

func (c *Conn) Recv(ctx context.Context) (Response, error) {
	return c.box.recv(ctx)
}

// Close unregisters the connection and drops its sessions. It is safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		select {
		case c.actor.departures <- c.id:
		case <-c.actor.done:
		}
	})
}
