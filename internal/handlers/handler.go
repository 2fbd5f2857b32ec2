package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/connectivity"
	"github.com/eldtechnologies/carebot/internal/conversation"
	"github.com/eldtechnologies/carebot/internal/dispatch"
	"github.com/eldtechnologies/carebot/internal/preferences"
	"github.com/eldtechnologies/carebot/internal/store"
	"github.com/eldtechnologies/carebot/internal/voice"
)

// maxMessageLen bounds the text accepted from a single send.
const maxMessageLen = 4000

// Deps are the components served by the local API.
type Deps struct {
	UserID       string
	Backend      string
	Store        store.KV
	Conversation *conversation.Store
	Dispatcher   *dispatch.Dispatcher
	Monitor      *connectivity.Monitor
	Preferences  *preferences.Store
	Voice        *voice.Bridge // optional
	Logger       zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	userID     string
	backend    string
	kv         store.KV
	conv       *conversation.Store
	dispatcher *dispatch.Dispatcher
	monitor    *connectivity.Monitor
	prefs      *preferences.Store
	voice      *voice.Bridge
	logger     zerolog.Logger
}

// NewHandler creates a new Handler over the daemon's components.
func NewHandler(d Deps) *Handler {
	return &Handler{
		userID:     d.UserID,
		backend:    d.Backend,
		kv:         d.Store,
		conv:       d.Conversation,
		dispatcher: d.Dispatcher,
		monitor:    d.Monitor,
		prefs:      d.Preferences,
		voice:      d.Voice,
		logger:     d.Logger.With().Str("component", "api").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeText trims text and removes control characters other than newlines
// and tabs.
func sanitizeText(text string) string {
	text = strings.TrimSpace(text)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
