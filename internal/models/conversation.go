package models

import "time"

// Conversation is the ordered message history for one user.
type Conversation struct {
	UserID    string    `json:"user_id"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Last returns the most recent message, if any.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Find returns the index of the message with the given id, or -1.
func (c *Conversation) Find(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand to callers.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{
		UserID:    c.UserID,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]Message, len(c.Messages)),
	}
	copy(out.Messages, c.Messages)
	for i := range out.Messages {
		if conf := out.Messages[i].Confidence; conf != nil {
			v := *conf
			out.Messages[i].Confidence = &v
		}
	}
	return out
}

// QueuedSend is a user message awaiting network delivery.
type QueuedSend struct {
	MessageID string    `json:"message_id"` // the user message
	NoticeID  string    `json:"notice_id"`  // the offline notice shown in its place
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	QueuedAt  time.Time `json:"queued_at"`
}
