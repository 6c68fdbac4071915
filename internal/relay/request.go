package relay

// Request is one unit of work for the actor. The set of variants is closed.
type Request interface {
	Kind() string
	origin() ConnID
}

type Login struct {
	Conn     ConnID
	Email    string
	Password string
}

type RegisterUser struct {
	Conn     ConnID
	Name     string
	Email    string
	Password string
}

type TokenValidation struct {
	Conn  ConnID
	Token string
}

// NewChat requires Conn to be bound to Email through a prior login or token validation.
type NewChat struct {
	Conn  ConnID
	Email string
}

type ChatRequest struct {
	Conn   ConnID
	Token  string
	ChatID string
}

type NewMessage struct {
	Conn      ConnID
	Token     string
	Sender    string
	ChatID    string
	Content   string
	MessageID string
}

// GetChats requires Conn to be bound to Email.
type GetChats struct {
	Conn  ConnID
	Email string
}

type DeleteChat struct {
	Conn   ConnID
	Token  string
	ChatID string
}

type GetMessage struct {
	Conn      ConnID
	MessageID string
}

type GetAudioPath struct {
	Conn      ConnID
	MessageID string
}

// RecordAudioPath has no reply.
type RecordAudioPath struct {
	MessageID string
	Path      string
}

// PurgeExpiredTokens has no reply.
type PurgeExpiredTokens struct{}

func (Login) Kind() string              { return "login" }
func (RegisterUser) Kind() string       { return "register_user" }
func (TokenValidation) Kind() string    { return "token_validation" }
func (NewChat) Kind() string            { return "new_chat" }
func (ChatRequest) Kind() string        { return "chat_request" }
func (NewMessage) Kind() string         { return "new_message" }
func (GetChats) Kind() string           { return "get_chats" }
func (DeleteChat) Kind() string         { return "delete_chat" }
func (GetMessage) Kind() string         { return "get_message" }
func (GetAudioPath) Kind() string       { return "get_audio_path" }
func (RecordAudioPath) Kind() string    { return "record_audio_path" }
func (PurgeExpiredTokens) Kind() string { return "purge_expired_tokens" }

func (r Login) origin() ConnID            { return r.Conn }
func (r RegisterUser) origin() ConnID     { return r.Conn }
func (r TokenValidation) origin() ConnID  { return r.Conn }
func (r NewChat) origin() ConnID          { return r.Conn }
func (r ChatRequest) origin() ConnID      { return r.Conn }
func (r NewMessage) origin() ConnID       { return r.Conn }
func (r GetChats) origin() ConnID         { return r.Conn }
func (r DeleteChat) origin() ConnID       { return r.Conn }
func (r GetMessage) origin() ConnID       { return r.Conn }
func (r GetAudioPath) origin() ConnID     { return r.Conn }
func (RecordAudioPath) origin() ConnID    { return "" }
func (PurgeExpiredTokens) origin() ConnID { return "" }
