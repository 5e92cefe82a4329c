package amqp

import (
	"encoding/json"
	"time"
)

// EntrySyncMessage asks the worker to export an entry. The worker reads the
// record itself; Version is the saved version that triggered the message.
type EntrySyncMessage struct {
	EntryID   string    `json:"entry_id"`
	GroupID   string    `json:"group_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(entryID, groupID string, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		EntryID:   entryID,
		GroupID:   groupID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON decodes a message body.
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
