package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/eldtechnologies/carebot/internal/dispatch"
	"github.com/eldtechnologies/carebot/internal/models"
)

// PostMessageRequest represents the send message request.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// QueueResponse represents the offline queue response.
type QueueResponse struct {
	Length  int                 `json:"length"`
	Pending []models.QueuedSend `json:"pending"`
}

// PostMessage sends a user message. Remote failures and offline queueing are
// reported in the result, not as HTTP errors.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Text = sanitizeText(req.Text)
	if utf8.RuneCountInString(req.Text) > maxMessageLen {
		h.Error(w, http.StatusUnprocessableEntity, "text too long")
		return
	}

	res, err := h.dispatcher.Send(r.Context(), req.Text)
	if errors.Is(err, dispatch.ErrEmptyMessage) {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("send failed")
		h.Error(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	status := http.StatusCreated
	if res.Queued {
		status = http.StatusAccepted
	}
	h.JSON(w, status, res)
}

// GetQueue returns sends waiting for connectivity, oldest first.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	pending := h.dispatcher.Queue().Pending()
	h.JSON(w, http.StatusOK, QueueResponse{
		Length:  len(pending),
		Pending: pending,
	})
}
