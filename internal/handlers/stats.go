package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eldtechnologies/carebot/internal/markup"
	"github.com/eldtechnologies/carebot/internal/models"
)

const (
	recentMessages = 5
	previewLen     = 200
)

// MessagePreview represents a preview of a message.
type MessagePreview struct {
	ID        string        `json:"id"`
	Role      models.Role   `json:"role"`
	Status    models.Status `json:"status"`
	Body      string        `json:"body"`
	Timestamp int64         `json:"timestamp"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalMessages  int              `json:"total_messages"`
	ByRole         map[string]int   `json:"by_role"`
	ByStatus       map[string]int   `json:"by_status"`
	QueueDepth     int              `json:"queue_depth"`
	Online         bool             `json:"online"`
	LastActivity   string           `json:"last_activity"`
	RecentMessages []MessagePreview `json:"recent_messages"`
}

// Stats summarizes the conversation for dashboards and the CLI.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conv.Conversation()
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "conversation not loaded")
		return
	}

	resp := StatsResponse{
		TotalMessages: len(conv.Messages),
		ByRole:        make(map[string]int),
		ByStatus:      make(map[string]int),
		QueueDepth:    h.dispatcher.Queue().Len(),
		Online:        h.monitor.Online(),
		LastActivity:  "no activity yet",
	}
	for _, m := range conv.Messages {
		resp.ByRole[string(m.Role)]++
		resp.ByStatus[string(m.Status)]++
	}
	if last, ok := conv.Last(); ok {
		resp.LastActivity = formatTimeAgo(last.CreatedAt)
	}

	start := max(len(conv.Messages)-recentMessages, 0)
	resp.RecentMessages = make([]MessagePreview, 0, len(conv.Messages)-start)
	for _, m := range conv.Messages[start:] {
		resp.RecentMessages = append(resp.RecentMessages, MessagePreview{
			ID:        m.ID,
			Role:      m.Role,
			Status:    m.Status,
			Body:      truncate(markup.Plain(m.Content), previewLen),
			Timestamp: m.CreatedAt.UnixMilli(),
		})
	}

	h.JSON(w, http.StatusOK, resp)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return strconv.Itoa(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return strconv.Itoa(days) + " days ago"
	}
}
