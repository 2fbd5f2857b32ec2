package models

// VoiceSettings controls the optional speech capabilities.
type VoiceSettings struct {
	SpeechToText bool `json:"speechToText"`
	TextToSpeech bool `json:"textToSpeech"`
	AutoSpeak    bool `json:"autoSpeak"`
}

// NotificationSettings controls which alerts the user wants to receive.
type NotificationSettings struct {
	HealthAlerts         bool `json:"healthAlerts"`
	VaccinationReminders bool `json:"vaccinationReminders"`
	SMS                  bool `json:"sms"`
}

// Preferences is the combined view served by the local API.
type Preferences struct {
	Voice         VoiceSettings        `json:"voice"`
	Language      string               `json:"language"`
	Notifications NotificationSettings `json:"notifications"`
}
