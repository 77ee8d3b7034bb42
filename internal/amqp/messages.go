package amqp

import (
	"encoding/json"
	"time"
)

// EventType names the ledger mutations that produce an event.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventTagDeleted         EventType = "tag.deleted"
)

// LedgerEvent is published after every successful ledger mutation. It carries
// ids only; consumers fetch current state from storage, never from the
// message, so stale deliveries cannot resurrect old values.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	UserID        int64     `json:"user_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	TagID         int64     `json:"tag_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(typ EventType, userID int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      typ,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
