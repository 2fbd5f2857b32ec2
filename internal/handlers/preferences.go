package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/carebot/internal/models"
)

// UpdatePreferencesRequest carries the preference blobs to replace. Omitted
// fields are left unchanged.
type UpdatePreferencesRequest struct {
	Voice         *models.VoiceSettings        `json:"voice,omitempty"`
	Language      *string                      `json:"language,omitempty"`
	Notifications *models.NotificationSettings `json:"notifications,omitempty"`
}

// GetPreferences returns voice, language and notification preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.prefs.All(r.Context()))
}

// PutPreferences updates preferences. A language change also becomes the
// hint sent with subsequent messages.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()

	if req.Language != nil {
		if err := h.prefs.SetLanguage(ctx, *req.Language); err != nil {
			h.Error(w, http.StatusBadRequest, "language must be 1-16 characters")
			return
		}
		h.dispatcher.SetLanguage(h.prefs.Language(ctx))
	}
	if req.Voice != nil {
		if err := h.prefs.SetVoice(ctx, *req.Voice); err != nil {
			h.logger.Error().Err(err).Msg("failed to save voice settings")
			h.Error(w, http.StatusInternalServerError, "failed to save preferences")
			return
		}
	}
	if req.Notifications != nil {
		if err := h.prefs.SetNotifications(ctx, *req.Notifications); err != nil {
			h.logger.Error().Err(err).Msg("failed to save notification settings")
			h.Error(w, http.StatusInternalServerError, "failed to save preferences")
			return
		}
	}

	h.JSON(w, http.StatusOK, h.prefs.All(ctx))
}
