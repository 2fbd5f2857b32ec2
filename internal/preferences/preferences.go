// Package preferences persists the user's voice, language and notification
// settings in the durable store.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/models"
	"github.com/eldtechnologies/carebot/internal/store"
)

// DefaultVoice matches the settings a fresh install starts with.
var DefaultVoice = models.VoiceSettings{
	SpeechToText: true,
	TextToSpeech: true,
	AutoSpeak:    false,
}

// DefaultNotifications enables in-app alerts only.
var DefaultNotifications = models.NotificationSettings{
	HealthAlerts:         true,
	VaccinationReminders: true,
	SMS:                  false,
}

const maxLanguageLen = 16

// Store reads and writes preference blobs. Malformed or missing blobs read as
// defaults.
type Store struct {
	kv              store.KV
	defaultLanguage string
	logger          zerolog.Logger
}

// New creates a preference store.
func New(kv store.KV, defaultLanguage string, logger zerolog.Logger) *Store {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Store{
		kv:              kv,
		defaultLanguage: defaultLanguage,
		logger:          logger.With().Str("component", "preferences").Logger(),
	}
}

// Voice returns the voice settings.
func (s *Store) Voice(ctx context.Context) models.VoiceSettings {
	v := DefaultVoice
	s.read(ctx, store.VoiceSettingsKey, &v, DefaultVoice)
	return v
}

// SetVoice persists the voice settings.
func (s *Store) SetVoice(ctx context.Context, v models.VoiceSettings) error {
	return s.write(ctx, store.VoiceSettingsKey, v)
}

// TextToSpeech reports whether assistant replies should be spoken.
func (s *Store) TextToSpeech(ctx context.Context) bool {
	return s.Voice(ctx).TextToSpeech
}

// Notifications returns the notification settings.
func (s *Store) Notifications(ctx context.Context) models.NotificationSettings {
	n := DefaultNotifications
	s.read(ctx, store.NotificationSettingsKey, &n, DefaultNotifications)
	return n
}

// SetNotifications persists the notification settings.
func (s *Store) SetNotifications(ctx context.Context, n models.NotificationSettings) error {
	return s.write(ctx, store.NotificationSettingsKey, n)
}

// Language returns the stored language tag or the configured default.
func (s *Store) Language(ctx context.Context) string {
	raw, err := s.kv.Get(ctx, store.LanguageKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to read language")
		}
		return s.defaultLanguage
	}
	tag, err := normalizeLanguage(string(raw))
	if err != nil {
		return s.defaultLanguage
	}
	return tag
}

// SetLanguage validates and persists a language tag.
func (s *Store) SetLanguage(ctx context.Context, tag string) error {
	tag, err := normalizeLanguage(tag)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, store.LanguageKey, []byte(tag))
}

// All returns the combined preferences.
func (s *Store) All(ctx context.Context) models.Preferences {
	return models.Preferences{
		Voice:         s.Voice(ctx),
		Language:      s.Language(ctx),
		Notifications: s.Notifications(ctx),
	}
}

// Update persists every field of p.
func (s *Store) Update(ctx context.Context, p models.Preferences) error {
	if err := s.SetVoice(ctx, p.Voice); err != nil {
		return err
	}
	if err := s.SetNotifications(ctx, p.Notifications); err != nil {
		return err
	}
	if p.Language != "" {
		return s.SetLanguage(ctx, p.Language)
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string, dst, fallback any) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read preferences")
		}
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("malformed preferences, using defaults")
		// Unmarshal may have partially written dst.
		b, _ := json.Marshal(fallback)
		_ = json.Unmarshal(b, dst)
	}
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, data)
}

func normalizeLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || len(tag) > maxLanguageLen {
		return "", fmt.Errorf("invalid language tag %q", tag)
	}
	return strings.ToLower(tag), nil
}
