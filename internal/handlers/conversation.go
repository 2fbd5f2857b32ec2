package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eldtechnologies/carebot/internal/models"
)

// ConversationResponse represents the conversation history response.
type ConversationResponse struct {
	UserID    string           `json:"user_id"`
	Messages  []models.Message `json:"messages"`
	UpdatedAt time.Time        `json:"updated_at"`
	HasMore   bool             `json:"has_more"`
}

// GetConversation returns the conversation, oldest message first. With
// ?limit=N only the newest N messages are returned; ?before=<id> pages back
// from that message.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conv.Conversation()
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "conversation not loaded")
		return
	}

	limitStr := r.URL.Query().Get("limit")
	before := r.URL.Query().Get("before")

	limit := 0
	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 {
			h.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(l, 500)
	}

	messages := conv.Messages
	if before != "" {
		i := conv.Find(before)
		if i < 0 {
			h.Error(w, http.StatusNotFound, "message not found")
			return
		}
		messages = messages[:i]
	}

	hasMore := false
	if limit > 0 && len(messages) > limit {
		hasMore = true
		messages = messages[len(messages)-limit:]
	}

	h.JSON(w, http.StatusOK, ConversationResponse{
		UserID:    conv.UserID,
		Messages:  messages,
		UpdatedAt: conv.UpdatedAt,
		HasMore:   hasMore,
	})
}

// ResetConversation clears the history back to the welcome message. Queued
// sends are kept and still get replies.
func (h *Handler) ResetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conv.Reset(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to reset conversation")
		h.Error(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}

	h.JSON(w, http.StatusOK, ConversationResponse{
		UserID:    conv.UserID,
		Messages:  conv.Messages,
		UpdatedAt: conv.UpdatedAt,
	})
}
