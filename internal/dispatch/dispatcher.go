// Package dispatch gets user messages to the remote assistant in order: it
// sends immediately when online, queues while offline, and replays the queue
// when connectivity returns.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/assistant"
	"github.com/eldtechnologies/carebot/internal/connectivity"
	"github.com/eldtechnologies/carebot/internal/conversation"
	"github.com/eldtechnologies/carebot/internal/metrics"
	"github.com/eldtechnologies/carebot/internal/models"
)

// Fixed bodies for synthesized assistant messages.
const (
	ErrorText = "Sorry, I encountered an error processing your message. " +
		"Please try again later or consult a healthcare professional if it's urgent."
	OfflineText = "I'm currently offline. Your message will be processed when connection is restored. " +
		"In the meantime, here are some general health tips: Stay hydrated, maintain good hygiene, " +
		"and seek immediate medical attention for severe symptoms."
)

// ErrEmptyMessage is returned for blank input. Nothing is recorded.
var ErrEmptyMessage = errors.New("dispatch: empty message")

// Assistant produces replies.
type Assistant interface {
	Chat(ctx context.Context, in assistant.ChatRequest) (*assistant.ChatResponse, error)
}

// Connectivity reports the current reachability.
type Connectivity interface {
	Online() bool
}

// Announcer speaks assistant messages. It must not block.
type Announcer interface {
	Announce(msg models.Message)
}

// Config wires a Dispatcher.
type Config struct {
	UserID       string
	Language     string
	Conversation *conversation.Store
	Queue        *Queue
	Assistant    Assistant
	Connectivity Connectivity
	Voice        Announcer                   // optional
	SpeakReplies func(context.Context) bool // optional; consulted per reply
	Logger       zerolog.Logger
}

// SendResult reports what a Send recorded.
type SendResult struct {
	User   models.Message  `json:"user"`
	Reply  *models.Message `json:"reply,omitempty"`
	Queued bool            `json:"queued"`
}

// Dispatcher processes sends one at a time per conversation.
type Dispatcher struct {
	userID       string
	conv         *conversation.Store
	queue        *Queue
	assistant    Assistant
	conn         Connectivity
	voice        Announcer
	speakReplies func(context.Context) bool
	logger       zerolog.Logger

	mu       sync.Mutex // serializes sends and drains
	wg       sync.WaitGroup
	langMu   sync.RWMutex
	language string
}

// New creates a Dispatcher. The conversation store must already be loaded.
func New(cfg Config) *Dispatcher {
	if cfg.Queue == nil {
		cfg.Queue = NewQueue(cfg.Logger)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Dispatcher{
		userID:       cfg.UserID,
		conv:         cfg.Conversation,
		queue:        cfg.Queue,
		assistant:    cfg.Assistant,
		conn:         cfg.Connectivity,
		voice:        cfg.Voice,
		speakReplies: cfg.SpeakReplies,
		logger:       cfg.Logger.With().Str("component", "dispatcher").Str("user_id", cfg.UserID).Logger(),
		language:     cfg.Language,
	}
}

// Language returns the language hint sent with new messages.
func (d *Dispatcher) Language() string {
	d.langMu.RLock()
	defer d.langMu.RUnlock()
	return d.language
}

// SetLanguage changes the language hint for subsequent sends.
func (d *Dispatcher) SetLanguage(tag string) {
	if tag == "" {
		return
	}
	d.langMu.Lock()
	d.language = tag
	d.langMu.Unlock()
}

// Queue returns the dispatcher's offline queue.
func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// Send records a user message and gets a reply for it, now or once
// connectivity returns. Remote failures are recorded as failed assistant
// messages, never returned; only blank input and persistence failures are.
func (d *Dispatcher) Send(ctx context.Context, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lang := d.Language()
	user := d.conv.NewMessage(models.RoleUser, text, lang, models.StatusDelivered)
	if err := d.conv.Append(ctx, user); err != nil {
		return nil, err
	}
	res := &SendResult{User: user}

	// A recorded user message must end with a reply or a queue entry, even
	// if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if !d.conn.Online() {
		notice := d.conv.NewMessage(models.RoleAssistant, OfflineText, lang, models.StatusPendingOffline)
		qs := models.QueuedSend{
			MessageID: user.ID,
			NoticeID:  notice.ID,
			Text:      text,
			Language:  lang,
			QueuedAt:  time.Now().UTC(),
		}
		// Queue before showing the notice so a pending notice always has an
		// entry behind it.
		if err := d.queue.Enqueue(ctx, qs); err != nil {
			return nil, err
		}
		if err := d.conv.Append(ctx, notice); err != nil {
			return nil, err
		}
		d.announce(ctx, notice)
		metrics.MessagesSent.WithLabelValues("offline").Inc()
		d.logger.Info().Str("message_id", user.ID).Int("queue_len", d.queue.Len()).Msg("queued message while offline")

		res.Reply = &notice
		res.Queued = true
		return res, nil
	}

	// Replies to earlier offline sends must land before this one's.
	if d.queue.Len() > 0 {
		if _, err := d.drainLocked(ctx); err != nil {
			return nil, err
		}
	}

	reply, err := d.deliver(ctx, text, lang)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("online").Inc()
	res.Reply = &reply
	return res, nil
}

// Drain replays queued sends while online. It returns how many were drained.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drainLocked(ctx)
}

func (d *Dispatcher) drainLocked(ctx context.Context) (int, error) {
	n, err := d.queue.DrainAll(ctx, d.conn.Online, func(ctx context.Context, qs models.QueuedSend) error {
		reply, err := d.deliver(ctx, qs.Text, qs.Language)
		if err != nil {
			return err
		}
		// The reply is recorded, so the entry must be popped even if the
		// notice cannot be updated; keeping it would deliver twice.
		if _, err := d.conv.UpdateStatus(ctx, qs.NoticeID, reply.Status); err != nil {
			d.logger.Error().Err(err).Str("notice_id", qs.NoticeID).Msg("failed to resolve offline notice")
		}
		return nil
	})
	if n > 0 || err != nil {
		ev := d.logger.Info()
		if err != nil {
			ev = d.logger.Error().Err(err)
		}
		ev.Int("drained", n).Int("remaining", d.queue.Len()).Msg("offline queue drain")
	}
	return n, err
}

// Attach drains the queue in the background on every offline to online
// transition of m, so the monitor is never blocked by a long replay. The
// returned function detaches; Wait blocks until started drains finish.
func (d *Dispatcher) Attach(ctx context.Context, m *connectivity.Monitor) (detach func()) {
	return m.Subscribe(func(ev connectivity.Event) {
		if ev.Online {
			d.StartDrain(ctx)
		}
	})
}

// StartDrain drains the queue in the background if there is anything to
// replay and the assistant is reachable. Wait covers it.
func (d *Dispatcher) StartDrain(ctx context.Context) {
	if d.queue.Len() == 0 || !d.conn.Online() {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.Drain(ctx); err != nil {
			d.logger.Error().Err(err).Msg("background drain failed")
		}
	}()
}

// Wait blocks until every background drain started by Attach or StartDrain
// has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliver calls the assistant and appends its reply, or a failure notice.
// Only a persistence failure is returned.
func (d *Dispatcher) deliver(ctx context.Context, text, lang string) (models.Message, error) {
	resp, err := d.assistant.Chat(ctx, assistant.ChatRequest{
		Message:  text,
		UserID:   d.userID,
		Language: lang,
	})

	var reply models.Message
	if err != nil {
		d.logger.Warn().Err(err).Msg("assistant request failed")
		reply = d.conv.NewMessage(models.RoleAssistant, ErrorText, lang, models.StatusFailed)
	} else {
		replyLang := resp.DetectedLanguage
		if replyLang == "" {
			replyLang = lang
		}
		reply = d.conv.NewMessage(models.RoleAssistant, resp.Response, replyLang, models.StatusDelivered)
		reply.Confidence = resp.Confidence
		reply.ServerTimestamp = resp.Timestamp
	}

	if err := d.conv.Append(ctx, reply); err != nil {
		return models.Message{}, err
	}
	metrics.AssistantReplies.WithLabelValues(string(reply.Status)).Inc()
	d.announce(ctx, reply)
	return reply, nil
}

func (d *Dispatcher) announce(ctx context.Context, msg models.Message) {
	if d.voice == nil || d.speakReplies == nil || !d.speakReplies(ctx) {
		return
	}
	d.voice.Announce(msg)
}
