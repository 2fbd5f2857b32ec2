package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/metrics"
	"github.com/eldtechnologies/carebot/internal/models"
	"github.com/eldtechnologies/carebot/internal/store"
)

// Queue is a FIFO of sends composed while offline. It is unbounded and, when
// given a durable store, persists every change before returning.
type Queue struct {
	kv     store.KV // optional
	key    string
	logger zerolog.Logger

	mu       sync.Mutex
	items    []models.QueuedSend
	draining bool
}

// NewQueue creates an empty in-memory queue.
func NewQueue(logger zerolog.Logger) *Queue {
	return &Queue{logger: logger.With().Str("component", "queue").Logger()}
}

// OpenQueue restores a user's queue from kv. A corrupt record is discarded.
func OpenQueue(ctx context.Context, kv store.KV, userID string, logger zerolog.Logger) (*Queue, error) {
	q := NewQueue(logger)
	q.kv = kv
	q.key = store.QueueKey(userID)

	raw, err := kv.Get(ctx, q.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read queue: %w", err)
	default:
		if err := json.Unmarshal(raw, &q.items); err != nil {
			q.logger.Warn().Err(err).Str("user_id", userID).Msg("stored queue is corrupt, discarding")
			q.items = nil
		}
	}
	metrics.QueueDepth.Set(float64(len(q.items)))
	return q, nil
}

// Enqueue appends qs to the tail.
func (q *Queue) Enqueue(ctx context.Context, qs models.QueuedSend) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := append(q.items[:len(q.items):len(q.items)], qs)
	if err := q.persist(ctx, next); err != nil {
		return err
	}
	q.items = next
	metrics.QueueDepth.Set(float64(len(q.items)))
	return nil
}

// Len returns the number of queued sends.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a snapshot of the queued sends, head first.
func (q *Queue) Pending() []models.QueuedSend {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.QueuedSend, len(q.items))
	copy(out, q.items)
	return out
}

// SendFunc delivers one queued send. A non-nil error means the send could not
// be recorded at all; the entry then stays queued and draining stops.
type SendFunc func(ctx context.Context, qs models.QueuedSend) error

// DrainAll replays queued sends head first, one at a time, while online
// reports true. Each entry is removed once send returns nil, whatever the
// outcome of the remote call. It returns the number of entries drained.
// Concurrent calls do not overlap: a call made while another drain is running
// returns immediately.
func (q *Queue) DrainAll(ctx context.Context, online func() bool, send SendFunc) (int, error) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return 0, nil
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	drained := 0
	for {
		if err := ctx.Err(); err != nil {
			return drained, err
		}
		if !online() {
			if n := q.Len(); n > 0 {
				q.logger.Info().Int("remaining", n).Msg("went offline during drain")
			}
			return drained, nil
		}

		head, ok := q.peek()
		if !ok {
			return drained, nil
		}

		if err := send(ctx, head); err != nil {
			return drained, err
		}
		if err := q.pop(ctx, head); err != nil {
			return drained, err
		}
		drained++
		metrics.QueueDrained.Inc()
	}
}

func (q *Queue) peek() (models.QueuedSend, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.QueuedSend{}, false
	}
	return q.items[0], true
}

func (q *Queue) pop(ctx context.Context, head models.QueuedSend) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0].MessageID != head.MessageID {
		return fmt.Errorf("queue head changed during drain")
	}
	next := q.items[1:]
	if err := q.persist(ctx, next); err != nil {
		return err
	}
	q.items = next
	metrics.QueueDepth.Set(float64(len(q.items)))
	return nil
}

func (q *Queue) persist(ctx context.Context, items []models.QueuedSend) error {
	if q.kv == nil {
		return nil
	}
	if len(items) == 0 {
		if err := q.kv.Remove(ctx, q.key); err != nil {
			return fmt.Errorf("persist queue: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := q.kv.Set(ctx, q.key, data); err != nil {
		q.logger.Error().Err(err).Msg("failed to persist queue")
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}
