package preferences

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/models"
	"github.com/eldtechnologies/carebot/internal/store"
)

func newTestStore(t *testing.T) (*Store, store.KV) {
	t.Helper()
	kv := store.NewMemoryStore()
	return New(kv, "en", zerolog.Nop()), kv
}

func TestDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if got := s.Voice(ctx); got != DefaultVoice {
		t.Fatalf("expected default voice settings, got %+v", got)
	}
	if got := s.Language(ctx); got != "en" {
		t.Fatalf("expected default language, got %q", got)
	}
	if got := s.Notifications(ctx); got != DefaultNotifications {
		t.Fatalf("expected default notifications, got %+v", got)
	}
}

func TestMalformedVoiceFallsBack(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	_ = kv.Set(ctx, store.VoiceSettingsKey, []byte(`{"textToSpeech": "yes"`))

	if got := s.Voice(ctx); got != DefaultVoice {
		t.Fatalf("expected defaults for malformed blob, got %+v", got)
	}
}

func TestVoiceRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	want := models.VoiceSettings{SpeechToText: false, TextToSpeech: false, AutoSpeak: true}
	if err := s.SetVoice(ctx, want); err != nil {
		t.Fatal(err)
	}
	if got := s.Voice(ctx); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if s.TextToSpeech(ctx) {
		t.Fatal("expected text-to-speech disabled")
	}
}

func TestSetLanguage(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SetLanguage(ctx, " HI "); err != nil {
		t.Fatal(err)
	}
	if got := s.Language(ctx); got != "hi" {
		t.Fatalf("expected hi, got %q", got)
	}
	if err := s.SetLanguage(ctx, ""); err == nil {
		t.Fatal("expected error for empty tag")
	}
	if err := s.SetLanguage(ctx, "this-tag-is-far-too-long"); err == nil {
		t.Fatal("expected error for long tag")
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p := models.Preferences{
		Voice:         models.VoiceSettings{TextToSpeech: true},
		Language:      "hi",
		Notifications: models.NotificationSettings{SMS: true},
	}
	if err := s.Update(ctx, p); err != nil {
		t.Fatal(err)
	}
	if got := s.All(ctx); got != p {
		t.Fatalf("got %+v, want %+v", got, p)
	}
}
