package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/eldtechnologies/carebot/internal/dispatch"
)

const listenTimeout = 30 * time.Second

// ListenRequest optionally overrides the recognition language.
type ListenRequest struct {
	Language string `json:"language,omitempty"`
}

// ListenResponse reports the recognized transcript and what sending it did.
type ListenResponse struct {
	Transcript string               `json:"transcript"`
	Result     *dispatch.SendResult `json:"result"`
}

// Listen captures one spoken utterance and sends it as a user message.
func (h *Handler) Listen(w http.ResponseWriter, r *http.Request) {
	if h.voice == nil || !h.voice.CanListen() {
		h.Error(w, http.StatusNotImplemented, "speech recognition not configured")
		return
	}

	var req ListenRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Error(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if !h.prefs.Voice(r.Context()).SpeechToText {
		h.Error(w, http.StatusForbidden, "speech to text is disabled")
		return
	}

	lang := req.Language
	if lang == "" {
		lang = h.dispatcher.Language()
	}

	ctx, cancel := context.WithTimeout(r.Context(), listenTimeout)
	defer cancel()

	var transcript string
	for t := range h.voice.Listen(ctx, lang) {
		transcript = t
		break
	}
	if transcript == "" {
		h.Error(w, http.StatusUnprocessableEntity, "no speech recognized")
		return
	}

	res, err := h.dispatcher.Send(r.Context(), sanitizeText(transcript))
	if errors.Is(err, dispatch.ErrEmptyMessage) {
		h.Error(w, http.StatusUnprocessableEntity, "no speech recognized")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("send after recognition failed")
		h.Error(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	h.JSON(w, http.StatusCreated, ListenResponse{Transcript: transcript, Result: res})
}
