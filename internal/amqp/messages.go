package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LedgerChangedMessage announces that a donation or funding changed and the
// monthly financials were rebuilt. Consumers reload what they need from storage.
type LedgerChangedMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	RecordID  string    `json:"record_id"`
	Action    string    `json:"action"`
	Months    int       `json:"months"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage stamps a fresh message ID and the current time.
func NewLedgerChangedMessage(kind, recordID, action string, months int) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		RecordID:  recordID,
		Action:    action,
		Months:    months,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("ledger message without id")
	}
	return &msg, nil
}
