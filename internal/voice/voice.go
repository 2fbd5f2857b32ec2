// Package voice adapts external speech capabilities: recognition produces
// candidate transcripts, synthesis speaks assistant replies.
package voice

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/markup"
	"github.com/eldtechnologies/carebot/internal/models"
)

// Speaker synthesizes speech.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Recognizer produces the transcripts of one listening session. The sequence
// is finite; calling Recognize again starts a new session.
type Recognizer interface {
	Recognize(ctx context.Context, language string) iter.Seq[string]
}

// Nop is a Speaker that does nothing.
type Nop struct{}

// Speak implements Speaker.
func (Nop) Speak(context.Context, string, string) error { return nil }

// Locale maps a language tag to the locale speech engines expect.
func Locale(language string) string {
	switch strings.ToLower(language) {
	case "hi", "hi-in":
		return "hi-IN"
	default:
		return "en-US"
	}
}

// Bridge is what the dispatcher sees of the speech capabilities.
type Bridge struct {
	speaker    Speaker
	recognizer Recognizer
	timeout    time.Duration
	logger     zerolog.Logger

	wg sync.WaitGroup
}

// NewBridge creates a bridge. Either capability may be nil.
func NewBridge(speaker Speaker, recognizer Recognizer, logger zerolog.Logger) *Bridge {
	if speaker == nil {
		speaker = Nop{}
	}
	return &Bridge{
		speaker:    speaker,
		recognizer: recognizer,
		timeout:    time.Minute,
		logger:     logger.With().Str("component", "voice").Logger(),
	}
}

// Announce speaks an assistant message in the background. Failures are logged
// and dropped.
func (b *Bridge) Announce(msg models.Message) {
	text := markup.Plain(msg.Content)
	if text == "" {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		if err := b.speaker.Speak(ctx, text, msg.Language); err != nil {
			b.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("speech synthesis failed")
		}
	}()
}

// Wait blocks until every pending announcement has finished.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// CanListen reports whether a recognizer is configured.
func (b *Bridge) CanListen() bool {
	return b.recognizer != nil
}

// Listen yields the non-empty transcripts of one listening session.
func (b *Bridge) Listen(ctx context.Context, language string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if b.recognizer == nil {
			return
		}
		for t := range b.recognizer.Recognize(ctx, language) {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
