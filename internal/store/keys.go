package store

// Key names are shared with the browser client so exported histories stay readable.
const (
	UserIDKey               = "healthcare_bot_user_id"
	LanguageKey             = "healthcare_bot_language"
	VoiceSettingsKey        = "voice_settings"
	NotificationSettingsKey = "notification_settings"
)

// ConversationKey returns the key holding a user's chat history.
func ConversationKey(userID string) string {
	return "chat_history_" + userID
}

// QueueKey returns the key holding a user's undelivered offline sends.
func QueueKey(userID string) string {
	return "offline_queue_" + userID
}
