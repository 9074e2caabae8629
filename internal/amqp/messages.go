package amqp

import (
	"encoding/json"
	"time"

	"financeai/internal/ledger"
)

// ChangeMessage is the wire form of a ledger.Change. It carries identifiers
// only; receivers re-query the ledger for the current state.
type ChangeMessage struct {
	Type          string    `json:"type"`
	Table         string    `json:"table"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewChangeMessage creates a message for c, stamping it now if c has no time.
func NewChangeMessage(c ledger.Change) *ChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChangeMessage{
		Type:          string(c.Type),
		Table:         c.Table,
		UserID:        c.UserID,
		TransactionID: c.TransactionID,
		Timestamp:     ts,
	}
}

// ToChange converts the message back into a ledger.Change.
func (m *ChangeMessage) ToChange() ledger.Change {
	return ledger.Change{
		Type:          ledger.ChangeType(m.Type),
		Table:         m.Table,
		UserID:        m.UserID,
		TransactionID: m.TransactionID,
		At:            m.Timestamp,
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
