package events

import (
	"encoding/json"
	"time"

	"coinwise/internal/core"
)

// Action names the mutation a TransactionEvent reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// TransactionEvent is published after a transaction mutation succeeds.
// Deleted events carry only the id.
type TransactionEvent struct {
	Action        Action               `json:"action"`
	Mode          string               `json:"mode"`
	Identity      string               `json:"identity"`
	TransactionID string               `json:"transaction_id"`
	Type          core.TransactionType `json:"type,omitempty"`
	AmountCents   int64                `json:"amount_cents,omitempty"`
	Category      string               `json:"category,omitempty"`
	Date          core.Date            `json:"date"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewTransactionEvent describes a change to tx made by identity in mode.
func NewTransactionEvent(action Action, mode, identity string, tx core.Transaction) *TransactionEvent {
	ev := &TransactionEvent{
		Action:        action,
		Mode:          mode,
		Identity:      identity,
		TransactionID: tx.ID,
		Timestamp:     time.Now().UTC(),
	}
	if action != ActionDeleted {
		ev.Type = tx.Type
		ev.AmountCents = tx.Signed().Cents
		ev.Category = tx.Category
		ev.Date = tx.Date
	}
	return ev
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event published by PublishTransaction.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
