package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
)

// Requires a live server: REDIS_ADDR=127.0.0.1:6379 go test ./internal/store/redisstore
func TestPutGet(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := New(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	path, err := s.Put(ctx, t.Name()+".mp3", []byte("audio"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, path)
	if err != nil || string(got) != "audio" {
		t.Fatalf("get: %q %v", got, err)
	}
	if _, err := s.Get(ctx, "redis://audio:missing-"+t.Name()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRejectsForeignPath(t *testing.T) {
	s := &Store{}
	if _, err := s.Get(context.Background(), "static/x.mp3"); err == nil {
		t.Fatal("expected error for non-redis path")
	}
}
