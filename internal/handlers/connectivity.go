package handlers

import (
	"encoding/json"
	"net/http"
)

// ConnectivityRequest represents an explicit connectivity signal.
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

// ConnectivityResponse reports the current connectivity state.
type ConnectivityResponse struct {
	Online     bool `json:"online"`
	Changed    bool `json:"changed"`
	QueueDepth int  `json:"queue_depth"`
}

// GetConnectivity returns the current connectivity state.
func (h *Handler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, ConnectivityResponse{
		Online:     h.monitor.Online(),
		QueueDepth: h.dispatcher.Queue().Len(),
	})
}

// PutConnectivity applies a connectivity signal from a client, such as a
// browser forwarding its own online and offline events. Going online starts
// the queue drain in the background.
func (h *Handler) PutConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Online == nil {
		h.Error(w, http.StatusBadRequest, "online is required")
		return
	}

	changed := h.monitor.Set(*req.Online)
	if changed {
		h.logger.Info().Bool("online", *req.Online).Msg("connectivity signalled by client")
	}

	h.JSON(w, http.StatusOK, ConnectivityResponse{
		Online:     h.monitor.Online(),
		Changed:    changed,
		QueueDepth: h.dispatcher.Queue().Len(),
	})
}
