package relay

// Response is delivered on a connection's mailbox, either as the answer to
// one of its requests or as a push caused by another session.
type Response interface {
	isResponse()
}

type UserInfo struct {
	Email string
	Name  string
	Token string
}

type TokenIssued struct {
	Token string
}

type EmailResolved struct {
	Email string
}

// ChatCreated goes to every session of the owner, the requester included.
type ChatCreated struct {
	ChatID string
	Origin ConnID
}

type Messages struct {
	ChatID string
	Items  []Message
}

type Timestamp struct {
	ChatID    string
	MessageID string
	At        int64
}

type Chats struct {
	IDs []string
}

type Deleted struct {
	ChatID string
	Origin ConnID
}

type MessageContent struct {
	MessageID string
	Content   string
}

type AudioPath struct {
	MessageID string
	Path      string
}

// WebMessage echoes a new message to the owner's other sessions.
type WebMessage struct {
	Message Message
	Origin  ConnID
}

type ErrKind string

const (
	ErrAuth     ErrKind = "auth"
	ErrNotFound ErrKind = "not_found"
	ErrConflict ErrKind = "conflict"
	ErrInvalid  ErrKind = "invalid"
	ErrStore    ErrKind = "store"
)

// Err is the failure answer. It never says why authentication failed.
type Err struct {
	Kind ErrKind
}

func (e Err) Error() string { return "relay: " + string(e.Kind) }

func (UserInfo) isResponse()       {}
func (TokenIssued) isResponse()    {}
func (EmailResolved) isResponse()  {}
func (ChatCreated) isResponse()    {}
func (Messages) isResponse()       {}
func (Timestamp) isResponse()      {}
func (Chats) isResponse()          {}
func (Deleted) isResponse()        {}
func (MessageContent) isResponse() {}
func (AudioPath) isResponse()      {}
func (WebMessage) isResponse()     {}
func (Err) isResponse()            {}

// IsPush reports whether r was not caused by one of self's own requests.
func IsPush(r Response, self ConnID) bool {
	switch v := r.(type) {
	case WebMessage:
		return true
	case ChatCreated:
		return v.Origin != self
	case Deleted:
		return v.Origin != self
	default:
		return false
	}
}
