// Package notify publishes best-effort domain notifications, such as a
// finished categorization run, to a message broker.
package notify

import (
	"encoding/json"
	"time"
)

// Message types.
const (
	TypeCategorizationCompleted = "categorization.completed"
	TypeAutoSortApplied         = "autosort.applied"
	TypeTransactionsImported    = "transactions.imported"
)

// Message is the envelope published for every notification. Payload holds
// the type-specific body.
type Message struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a message, encoding payload as JSON.
func NewMessage(msgType, userID string, payload any) (Message, error) {
	msg := Message{
		Type:      msgType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = body
	}
	return msg, nil
}

// ToJSON converts the message to JSON bytes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes a message.
func MessageFromJSON(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
