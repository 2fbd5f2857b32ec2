package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/models"
	"github.com/eldtechnologies/carebot/internal/store"
)

func always(v bool) func() bool { return func() bool { return v } }

func enqueueN(t *testing.T, q *Queue, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if err := q.Enqueue(context.Background(), models.QueuedSend{MessageID: "m-" + text, NoticeID: "n-" + text, Text: text}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDrainAllIsFIFO(t *testing.T) {
	q := NewQueue(zerolog.Nop())
	enqueueN(t, q, "a", "b", "c")

	var got []string
	n, err := q.DrainAll(context.Background(), always(true), func(ctx context.Context, qs models.QueuedSend) error {
		got = append(got, qs.Text)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || q.Len() != 0 {
		t.Fatalf("expected 3 drained and empty queue, got %d drained, %d left", n, q.Len())
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDrainAllOfflineDoesNothing(t *testing.T) {
	q := NewQueue(zerolog.Nop())
	enqueueN(t, q, "a")

	n, err := q.DrainAll(context.Background(), always(false), func(context.Context, models.QueuedSend) error {
		t.Fatal("send called while offline")
		return nil
	})
	if err != nil || n != 0 || q.Len() != 1 {
		t.Fatalf("unexpected drain result n=%d err=%v len=%d", n, err, q.Len())
	}
}

func TestDrainAllStopsWhenOffline(t *testing.T) {
	q := NewQueue(zerolog.Nop())
	enqueueN(t, q, "a", "b", "c")

	online := true
	n, _ := q.DrainAll(context.Background(), func() bool { return online }, func(ctx context.Context, qs models.QueuedSend) error {
		if qs.Text == "a" {
			online = false
		}
		return nil
	})
	if n != 1 {
		t.Fatalf("expected 1 drained, got %d", n)
	}
	pending := q.Pending()
	if len(pending) != 2 || pending[0].Text != "b" || pending[1].Text != "c" {
		t.Fatalf("remaining entries disturbed: %+v", pending)
	}
}

func TestDrainAllKeepsEntryOnSendError(t *testing.T) {
	q := NewQueue(zerolog.Nop())
	enqueueN(t, q, "a", "b")

	boom := errors.New("disk full")
	n, err := q.DrainAll(context.Background(), always(true), func(context.Context, models.QueuedSend) error {
		return boom
	})
	if !errors.Is(err, boom) || n != 0 || q.Len() != 2 {
		t.Fatalf("unexpected drain result n=%d err=%v len=%d", n, err, q.Len())
	}
}

func TestQueuePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()

	q, err := OpenQueue(ctx, kv, "u1", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	enqueueN(t, q, "a", "b")

	q2, err := OpenQueue(ctx, kv, "u1", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if q2.Len() != 2 || q2.Pending()[0].Text != "a" {
		t.Fatalf("queue not restored: %+v", q2.Pending())
	}

	if _, err := q2.DrainAll(ctx, always(true), func(context.Context, models.QueuedSend) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Get(ctx, store.QueueKey("u1")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected drained queue to be removed from store, got %v", err)
	}
}

func TestOpenQueueDiscardsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	_ = kv.Set(ctx, store.QueueKey("u1"), []byte("{oops"))

	q, err := OpenQueue(ctx, kv, "u1", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestPendingIsACopy(t *testing.T) {
	q := NewQueue(zerolog.Nop())
	enqueueN(t, q, "a")

	p := q.Pending()
	p[0].Text = "changed"
	if q.Pending()[0].Text != "a" {
		t.Fatal("Pending exposed internal state")
	}
}
