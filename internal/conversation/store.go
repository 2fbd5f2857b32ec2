// Package conversation owns the ordered message history for one user and
// persists it write-through to the durable store.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/models"
	"github.com/eldtechnologies/carebot/internal/store"
)

// WelcomeText seeds every new conversation.
const WelcomeText = `Hello! I'm your healthcare assistant. I can help you with:

🔍 **Symptom Analysis** - Describe your symptoms for possible conditions
💉 **Vaccination Info** - Get vaccination schedules and information
🛡️ **Preventive Care** - Learn about staying healthy
🚨 **Health Alerts** - Check for disease outbreaks in your area

What would you like to know about?`

// ErrNotLoaded is returned by mutations issued before Load.
var ErrNotLoaded = errors.New("conversation: not loaded")

// EventKind identifies what changed.
type EventKind string

const (
	EventAppended      EventKind = "appended"
	EventStatusChanged EventKind = "status_changed"
	EventReset         EventKind = "reset"
)

// Event is delivered to listeners after the change has been persisted.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Message models.Message `json:"message"`
}

// Options tune a Store.
type Options struct {
	Language string           // language of the seeded welcome message
	Now      func() time.Time // clock, defaults to time.Now
}

// Store is the Conversation Store. Mutations are serialized and every one is
// persisted before it returns.
type Store struct {
	kv     store.KV
	logger zerolog.Logger
	opts   Options

	mu   sync.Mutex
	conv *models.Conversation

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// NewStore creates a Conversation Store over kv.
func NewStore(kv store.KV, logger zerolog.Logger, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	return &Store{
		kv:        kv,
		logger:    logger.With().Str("component", "conversation").Logger(),
		opts:      opts,
		listeners: make(map[int]func(Event)),
	}
}

// Load reads the user's conversation from the durable store. An absent or
// unparseable record yields a fresh conversation seeded with the welcome
// message. Read failures of the store itself are returned.
func (s *Store) Load(ctx context.Context, userID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.conv = conv
	return conv.Clone(), nil
}

func (s *Store) read(ctx context.Context, userID string) (*models.Conversation, error) {
	log := s.logger.With().Str("user_id", userID).Logger()

	raw, err := s.kv.Get(ctx, store.ConversationKey(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug().Msg("no stored conversation, seeding")
			return s.seed(userID), nil
		}
		return nil, fmt.Errorf("read conversation: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		log.Warn().Err(err).Msg("stored conversation is corrupt, seeding")
		return s.seed(userID), nil
	}
	if err := validate(&conv); err != nil {
		log.Warn().Err(err).Msg("stored conversation is invalid, seeding")
		return s.seed(userID), nil
	}
	conv.UserID = userID
	slices.SortStableFunc(conv.Messages, func(a, b models.Message) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return &conv, nil
}

// validate rejects records that decode but break the message invariants.
func validate(c *models.Conversation) error {
	if len(c.Messages) == 0 {
		return errors.New("no messages")
	}
	seen := make(map[string]struct{}, len(c.Messages))
	for i, m := range c.Messages {
		if m.ID == "" {
			return fmt.Errorf("message %d has no id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("duplicate message id %s", m.ID)
		}
		seen[m.ID] = struct{}{}
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return fmt.Errorf("message %s has unknown role %q", m.ID, m.Role)
		}
		if !m.Status.Valid() {
			return fmt.Errorf("message %s has unknown status %q", m.ID, m.Status)
		}
	}
	return nil
}

func (s *Store) seed(userID string) *models.Conversation {
	now := s.opts.Now().UTC()
	return &models.Conversation{
		UserID:    userID,
		UpdatedAt: now,
		Messages: []models.Message{{
			ID:        ulid.Make().String(),
			Role:      models.RoleAssistant,
			Content:   WelcomeText,
			CreatedAt: now,
			Language:  s.opts.Language,
			Status:    models.StatusDelivered,
		}},
	}
}

// NewMessage builds a message with a fresh id and a creation time strictly
// after the last message in the conversation.
func (s *Store) NewMessage(role models.Role, content, language string, status models.Status) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now().UTC()
	if s.conv != nil {
		if last, ok := s.conv.Last(); ok && !now.After(last.CreatedAt) {
			now = last.CreatedAt.Add(time.Nanosecond)
		}
	}
	return models.Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
		Language:  language,
		Status:    status,
	}
}

// Append adds msg at the end and persists the whole conversation. Once it
// returns, a Load from any process observes msg.
func (s *Store) Append(ctx context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil {
		return ErrNotLoaded
	}
	if last, ok := s.conv.Last(); ok && !last.Before(msg) {
		return fmt.Errorf("conversation: message %s does not sort after %s", msg.ID, last.ID)
	}

	next := s.conv.Clone()
	next.Messages = append(next.Messages, msg)
	next.UpdatedAt = s.opts.Now().UTC()
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.conv = next

	s.emit(Event{Kind: EventAppended, Message: msg})
	return nil
}

// UpdateStatus moves a message to a new status and persists. It returns false
// without error when the id is unknown or the transition is not allowed.
func (s *Store) UpdateStatus(ctx context.Context, messageID string, status models.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil {
		return false, ErrNotLoaded
	}
	i := s.conv.Find(messageID)
	if i < 0 {
		return false, nil
	}
	if !models.CanTransition(s.conv.Messages[i].Status, status) {
		s.logger.Debug().
			Str("message_id", messageID).
			Str("from", string(s.conv.Messages[i].Status)).
			Str("to", string(status)).
			Msg("rejected status transition")
		return false, nil
	}

	next := s.conv.Clone()
	next.Messages[i].Status = status
	next.UpdatedAt = s.opts.Now().UTC()
	if err := s.persist(ctx, next); err != nil {
		return false, err
	}
	s.conv = next

	s.emit(Event{Kind: EventStatusChanged, Message: next.Messages[i]})
	return true, nil
}

// Reset replaces the history with a freshly seeded conversation.
func (s *Store) Reset(ctx context.Context) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil {
		return nil, ErrNotLoaded
	}
	next := s.seed(s.conv.UserID)
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.conv = next

	s.emit(Event{Kind: EventReset, Message: next.Messages[0]})
	return next.Clone(), nil
}

// Conversation returns a snapshot of the current conversation.
func (s *Store) Conversation() (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil {
		return nil, ErrNotLoaded
	}
	return s.conv.Clone(), nil
}

// Messages returns a snapshot of the current messages.
func (s *Store) Messages() []models.Message {
	c, err := s.Conversation()
	if err != nil {
		return nil
	}
	return c.Messages
}

func (s *Store) persist(ctx context.Context, c *models.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, store.ConversationKey(c.UserID), data); err != nil {
		s.logger.Error().Err(err).Str("user_id", c.UserID).Msg("failed to persist conversation")
		return fmt.Errorf("persist conversation: %w", err)
	}
	return nil
}

// Subscribe registers l for conversation events and returns a function that
// removes it. Listeners run synchronously after the change is persisted and
// must not call back into the Store's mutating methods.
func (s *Store) Subscribe(l func(Event)) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) emit(ev Event) {
	s.lmu.Lock()
	ls := make([]func(Event), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	s.lmu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}
