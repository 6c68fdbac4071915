package relay

import (
	"context"
	"time"
)

// ConnID identifies one live client connection. It is never persisted.
type ConnID string

// Message is a stored chat turn.
type Message struct {
	ID        string
	ChatID    string
	Email     string
	Sender    string
	Content   string
	Timestamp int64 // unix milliseconds, assigned by the actor
}

type TokenRecord struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// Store is the durable state owned by the actor. Only the actor goroutine
// calls it. Lookups return ok=false, err=nil when nothing matches.
type Store interface {
	VerifyUser(ctx context.Context, email, password string) (bool, error)
	UserExists(ctx context.Context, email string) (bool, error)
	InsertUser(ctx context.Context, email, name, passwordHash string) error
	UserName(ctx context.Context, email string) (string, bool, error)

	FindToken(ctx context.Context, email string) (TokenRecord, bool, error)
	FindEmailByToken(ctx context.Context, token string) (TokenRecord, bool, error)
	DeleteTokens(ctx context.Context, email string) error
	InsertToken(ctx context.Context, rec TokenRecord) error
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	InsertChat(ctx context.Context, email string) (string, error)
	ListChats(ctx context.Context, email string) ([]string, error)
	HasChat(ctx context.Context, email, chatID string) (bool, error)
	DeleteChat(ctx context.Context, email, chatID string) error
	DeleteMessages(ctx context.Context, email, chatID string) error

	InsertMessage(ctx context.Context, m Message) error
	FindMessage(ctx context.Context, messageID string) (Message, bool, error)
	// ListRecentMessages returns at most limit of the newest messages, oldest first.
	ListRecentMessages(ctx context.Context, email, chatID string, limit int) ([]Message, error)

	GetAudioPath(ctx context.Context, messageID string) (string, bool, error)
	// RecordAudioPath keeps the first path stored for a message id.
	RecordAudioPath(ctx context.Context, messageID, path string) error
}
