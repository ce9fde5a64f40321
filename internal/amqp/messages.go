package amqp

import (
	"encoding/json"
	"time"

	"spendbook/internal/store"
)

// ChangeMessage announces one committed store change. It carries no record
// data; consumers read the current state from the API.
type ChangeMessage struct {
	Op        string    `json:"op"`
	Entity    string    `json:"entity"`
	ID        string    `json:"id,omitempty"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(c store.Change, at time.Time) *ChangeMessage {
	return &ChangeMessage{
		Op:        string(c.Op),
		Entity:    string(c.Entity),
		ID:        c.ID,
		Version:   c.Version,
		Timestamp: at.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
