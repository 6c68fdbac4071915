package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/chat-relay/internal/auth"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRepoVerifyUser(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := repo.InsertUser(ctx, "a@x.io", "Ana", hash); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	ok, err := repo.VerifyUser(ctx, "a@x.io", "password123")
	if err != nil || !ok {
		t.Fatalf("expected valid credentials, ok=%v err=%v", ok, err)
	}
	ok, err = repo.VerifyUser(ctx, "a@x.io", "wrong-password")
	if err != nil || ok {
		t.Fatalf("expected rejected password, ok=%v err=%v", ok, err)
	}
	ok, err = repo.VerifyUser(ctx, "nobody@x.io", "password123")
	if err != nil || ok {
		t.Fatalf("expected unknown user to fail, ok=%v err=%v", ok, err)
	}

	name, found, err := repo.UserName(ctx, "a@x.io")
	if err != nil || !found || name != "Ana" {
		t.Fatalf("unexpected name lookup: %q %v %v", name, found, err)
	}
	if err := repo.InsertUser(ctx, "a@x.io", "Other", hash); err == nil {
		t.Fatal("expected unique violation on duplicate email")
	}
}

func TestRepoTokens(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, found, err := repo.FindToken(ctx, "a@x.io"); err != nil || found {
		t.Fatalf("expected no token, found=%v err=%v", found, err)
	}
	if err := repo.InsertToken(ctx, relay.TokenRecord{Token: "t1", Email: "a@x.io", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("insert token: %v", err)
	}
	if err := repo.InsertToken(ctx, relay.TokenRecord{Token: "t2", Email: "b@x.io", ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("insert token: %v", err)
	}

	rec, found, err := repo.FindEmailByToken(ctx, "t1")
	if err != nil || !found || rec.Email != "a@x.io" {
		t.Fatalf("unexpected lookup: %+v %v %v", rec, found, err)
	}
	if !rec.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expiry not preserved: %s", rec.ExpiresAt)
	}

	n, err := repo.PurgeExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged token, got %d", n)
	}
	if _, found, _ := repo.FindToken(ctx, "b@x.io"); found {
		t.Fatal("expired token survived purge")
	}

	if err := repo.DeleteTokens(ctx, "a@x.io"); err != nil {
		t.Fatalf("delete tokens: %v", err)
	}
	if _, found, _ := repo.FindToken(ctx, "a@x.io"); found {
		t.Fatal("token survived delete")
	}
}

func TestRepoChatsAndMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))

	chatID, err := repo.InsertChat(ctx, "a@x.io")
	if err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	if len(chatID) != 26 {
		t.Fatalf("expected ULID chat id, got %q", chatID)
	}
	if owned, _ := repo.HasChat(ctx, "b@x.io", chatID); owned {
		t.Fatal("chat must not be owned by another email")
	}

	for i, content := range []string{"one", "two", "three"} {
		err := repo.InsertMessage(ctx, relay.Message{
			ID: content, ChatID: chatID, Email: "a@x.io", Sender: SenderUser, Content: content, Timestamp: int64(100 + i),
		})
		if err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	msgs, err := repo.ListRecentMessages(ctx, "a@x.io", chatID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Fatalf("expected newest two ascending, got %+v", msgs)
	}

	one, found, err := repo.FindMessage(ctx, "one")
	if err != nil || !found || one.Content != "one" || one.Email != "a@x.io" {
		t.Fatalf("unexpected message %+v found=%v: %v", one, found, err)
	}
	if _, found, err := repo.FindMessage(ctx, "missing"); found || err != nil {
		t.Fatalf("expected a clean miss, got found=%v err=%v", found, err)
	}

	if err := repo.RecordAudioPath(ctx, "two", "static/two.mp3"); err != nil {
		t.Fatalf("record audio: %v", err)
	}
	if err := repo.RecordAudioPath(ctx, "elsewhere", "static/elsewhere.mp3"); err != nil {
		t.Fatalf("record audio: %v", err)
	}

	if err := repo.DeleteMessages(ctx, "a@x.io", chatID); err != nil {
		t.Fatalf("delete messages: %v", err)
	}
	if _, found, err := repo.GetAudioPath(ctx, "two"); found || err != nil {
		t.Fatalf("audio path survived its message: found=%v err=%v", found, err)
	}
	if _, found, _ := repo.GetAudioPath(ctx, "elsewhere"); !found {
		t.Fatal("unrelated audio path removed")
	}
	if err := repo.DeleteChat(ctx, "a@x.io", chatID); err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	if err := repo.DeleteChat(ctx, "a@x.io", chatID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	ids, err := repo.ListChats(ctx, "a@x.io")
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no chats, got %v %v", ids, err)
	}
	if _, found, _ := repo.FindMessage(ctx, "two"); found {
		t.Fatal("message survived chat deletion")
	}
}

func TestRepoAudioPathFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))

	if _, found, err := repo.GetAudioPath(ctx, "m1"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}
	if err := repo.RecordAudioPath(ctx, "m1", "static/m1.mp3"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.RecordAudioPath(ctx, "m1", "static/other.mp3"); err != nil {
		t.Fatalf("second record should be ignored, got %v", err)
	}
	path, found, err := repo.GetAudioPath(ctx, "m1")
	if err != nil || !found || path != "static/m1.mp3" {
		t.Fatalf("unexpected path %q found=%v err=%v", path, found, err)
	}
}
