package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/chat-relay/internal/auth"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// Repo is the gorm-backed relay.Store.
type Repo struct {
	db *gorm.DB
}

var _ relay.Store = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// first runs q.First and reports a missing row as ok=false.
func first(q *gorm.DB, dest any) (bool, error) {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Users

func (r *Repo) VerifyUser(ctx context.Context, email, password string) (bool, error) {
	var u User
	found, err := first(r.db.WithContext(ctx).Where("email = ?", email), &u)
	if err != nil || !found {
		return false, err
	}
	return auth.CheckPassword(u.PasswordHash, password)
}

func (r *Repo) UserExists(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) InsertUser(ctx context.Context, email, name, passwordHash string) error {
	return r.db.WithContext(ctx).Create(&User{Email: email, Name: name, PasswordHash: passwordHash}).Error
}

func (r *Repo) UserName(ctx context.Context, email string) (string, bool, error) {
	var u User
	found, err := first(r.db.WithContext(ctx).Select("name").Where("email = ?", email), &u)
	return u.Name, found, err
}

// Tokens

func (r *Repo) FindToken(ctx context.Context, email string) (relay.TokenRecord, bool, error) {
	var t Token
	found, err := first(r.db.WithContext(ctx).Where("email = ?", email), &t)
	return toTokenRecord(t), found, err
}

func (r *Repo) FindEmailByToken(ctx context.Context, token string) (relay.TokenRecord, bool, error) {
	var t Token
	found, err := first(r.db.WithContext(ctx).Where("token = ?", token), &t)
	return toTokenRecord(t), found, err
}

func (r *Repo) DeleteTokens(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Where("email = ?", email).Delete(&Token{}).Error
}

func (r *Repo) InsertToken(ctx context.Context, rec relay.TokenRecord) error {
	return r.db.WithContext(ctx).Create(&Token{Token: rec.Token, Email: rec.Email, ExpiresAt: rec.ExpiresAt}).Error
}

func (r *Repo) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&Token{})
	return res.RowsAffected, res.Error
}

func toTokenRecord(t Token) relay.TokenRecord {
	return relay.TokenRecord{Token: t.Token, Email: t.Email, ExpiresAt: t.ExpiresAt}
}

// Chats

func (r *Repo) InsertChat(ctx context.Context, email string) (string, error) {
	id, err := NewChatID()
	if err != nil {
		return "", fmt.Errorf("chat id: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(&Chat{ChatID: id, Email: email}).Error; err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repo) ListChats(ctx context.Context, email string) ([]string, error) {
	ids := []string{}
	if err := r.db.WithContext(ctx).Model(&Chat{}).
		Where("email = ?", email).
		Order("id ASC").
		Pluck("chat_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) HasChat(ctx context.Context, email, chatID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Chat{}).
		Where("email = ? AND chat_id = ?", email, chatID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteChat returns ErrNotFound if email owns no such chat.
func (r *Repo) DeleteChat(ctx context.Context, email, chatID string) error {
	res := r.db.WithContext(ctx).Where("email = ? AND chat_id = ?", email, chatID).Delete(&Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	return nil
}

// DeleteMessages removes the chat's messages and their audio path rows.
func (r *Repo) DeleteMessages(ctx context.Context, email, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&Message{}).Select("message_id").Where("email = ? AND chat_id = ?", email, chatID)
		if err := tx.Where("message_id IN (?)", ids).Delete(&AudioPath{}).Error; err != nil {
			return err
		}
		return tx.Where("email = ? AND chat_id = ?", email, chatID).Delete(&Message{}).Error
	})
}

// Messages

func (r *Repo) InsertMessage(ctx context.Context, m relay.Message) error {
	return r.db.WithContext(ctx).Create(&Message{
		MessageID: m.ID,
		Email:     m.Email,
		ChatID:    m.ChatID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}).Error
}

func (r *Repo) FindMessage(ctx context.Context, messageID string) (relay.Message, bool, error) {
	var m Message
	found, err := first(r.db.WithContext(ctx).Where("message_id = ?", messageID), &m)
	return toRelayMessage(m), found, err
}

// ListRecentMessages returns the newest limit messages in ascending timestamp order.
func (r *Repo) ListRecentMessages(ctx context.Context, email, chatID string, limit int) ([]relay.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Message
	if err := r.db.WithContext(ctx).
		Where("email = ? AND chat_id = ?", email, chatID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	out := make([]relay.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, toRelayMessage(rows[i]))
	}
	return out, nil
}

func toRelayMessage(m Message) relay.Message {
	return relay.Message{
		ID:        m.MessageID,
		ChatID:    m.ChatID,
		Email:     m.Email,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

// Audio

func (r *Repo) GetAudioPath(ctx context.Context, messageID string) (string, bool, error) {
	var a AudioPath
	found, err := first(r.db.WithContext(ctx).Where("message_id = ?", messageID), &a)
	return a.Path, found, err
}

func (r *Repo) RecordAudioPath(ctx context.Context, messageID, path string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&AudioPath{MessageID: messageID, Path: path}).Error
}
