package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "kv_test_" + t.Name()
	_ = kv.Remove(ctx, key)

	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}

	if err := kv.Set(ctx, key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := kv.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"a":1}`)) {
		t.Fatalf("unexpected value %q", got)
	}

	if err := kv.Set(ctx, key, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = kv.Get(ctx, key)
	if string(got) != `{"a":2}` {
		t.Fatalf("expected overwritten value, got %q", got)
	}

	if err := kv.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := kv.Remove(ctx, key); err != nil {
		t.Fatalf("removing absent key should not fail: %v", err)
	}
	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v := []byte("abc")
	_ = s.Set(ctx, "k", v)
	v[0] = 'x'

	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("store kept caller's slice: %q", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	exerciseKV(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, ConversationKey("u1"), []byte("history")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Get(ctx, ConversationKey("u1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "history" {
		t.Fatalf("expected persisted value, got %q", got)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("CAREBOT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CAREBOT_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStore(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	exerciseKV(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("CAREBOT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CAREBOT_TEST_DATABASE_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	exerciseKV(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Options{Backend: BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.(*MemoryStore); !ok {
		t.Fatalf("expected MemoryStore, got %T", kv)
	}

	kv, err = Open(ctx, Options{Backend: BackendMemory, SealKey: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.(*SealedStore); !ok {
		t.Fatalf("expected SealedStore, got %T", kv)
	}

	if _, err := Open(ctx, Options{Backend: BackendRedis}); err == nil {
		t.Fatal("expected error when redis url is missing")
	}
	if _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestKeys(t *testing.T) {
	if got := ConversationKey("user_1"); got != "chat_history_user_1" {
		t.Fatalf("unexpected conversation key %q", got)
	}
	if got := QueueKey("user_1"); got != "offline_queue_user_1" {
		t.Fatalf("unexpected queue key %q", got)
	}
}
