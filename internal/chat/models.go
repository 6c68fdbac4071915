package chat

import "time"

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"type:varchar(128);not null" json:"name"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Token is unique per email; issuing a new one deletes the old row first.
type Token struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Token     string    `gorm:"type:varchar(512);uniqueIndex;not null"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (Token) TableName() string { return "tokens" }

type Chat struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatID    string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"chat_id"`
	Email     string    `gorm:"type:varchar(255);index;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Chat) TableName() string { return "chats" }

type Message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	Email     string `gorm:"type:varchar(255);not null;index:idx_msg_email_chat_ts,priority:1" json:"-"`
	ChatID    string `gorm:"type:varchar(26);not null;index:idx_msg_email_chat_ts,priority:2" json:"chat_id"`
	Sender    string `gorm:"type:varchar(16);not null" json:"sender"`
	Content   string `gorm:"type:text;not null" json:"content"`
	Timestamp int64  `gorm:"not null;index:idx_msg_email_chat_ts,priority:3" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

type AudioPath struct {
	MessageID string    `gorm:"type:varchar(64);primaryKey"`
	Path      string    `gorm:"type:varchar(512);not null"`
	CreatedAt time.Time
}

func (AudioPath) TableName() string { return "audio_paths" }

// Models lists every table, for migrations.
func Models() []any {
	return []any{&User{}, &Token{}, &Chat{}, &Message{}, &AudioPath{}}
}
