package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eldtechnologies/carebot/internal/connectivity"
	"github.com/eldtechnologies/carebot/internal/conversation"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 15 * time.Second
)

type streamEvent struct {
	name string
	data any
}

// Events streams conversation and connectivity changes as server-sent
// events. Event names are appended, status_changed, reset and connectivity.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan streamEvent, eventBuffer)
	// Listeners run inside store and monitor updates and must not block.
	push := func(ev streamEvent) {
		select {
		case events <- ev:
		default:
			h.logger.Warn().Str("event", ev.name).Msg("event stream lagging, dropping event")
		}
	}

	unsubConv := h.conv.Subscribe(func(ev conversation.Event) {
		push(streamEvent{name: string(ev.Kind), data: ev.Message})
	})
	defer unsubConv()
	unsubConn := h.monitor.Subscribe(func(ev connectivity.Event) {
		push(streamEvent{name: "connectivity", data: ev})
	})
	defer unsubConn()

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	initial := connectivity.Event{Online: h.monitor.Online(), At: time.Now().UTC()}
	if err := writeEvent(w, streamEvent{name: "connectivity", data: initial}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				h.logger.Debug().Err(err).Msg("event stream closed")
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev streamEvent) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
