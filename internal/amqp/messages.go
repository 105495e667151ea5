package amqp

import (
	"encoding/json"
	"time"

	"aarthik/internal/core"
)

// TransactionPayload is the wire form of a ledger transaction.
type TransactionPayload struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Timestamp   time.Time  `json:"timestamp"`
	Recurrence  string     `json:"recurrence,omitempty"`
}

// NewTransactionPayload converts a core transaction to its wire form.
func NewTransactionPayload(t core.Transaction) TransactionPayload {
	p := TransactionPayload{
		ID:          t.ID,
		Type:        string(t.Type),
		Category:    t.Category,
		Description: t.Description,
		Amount:      t.Amount,
		Timestamp:   t.Timestamp.UTC(),
	}
	if t.Recurrence != nil {
		p.Recurrence = string(*t.Recurrence)
	}
	return p
}

// LedgerEventMessage announces a committed ledger mutation.
// Consumers dedupe on EventID.
type LedgerEventMessage struct {
	EventID     string             `json:"event_id"`
	Type        string             `json:"type"`
	UserID      int64              `json:"user_id"`
	ProfileID   int64              `json:"profile_id"`
	Version     int64              `json:"version"`
	Transaction TransactionPayload `json:"transaction"`
	Income      core.Money         `json:"total_income"`
	Expense     core.Money         `json:"total_expense"`
	Balance     core.Money         `json:"total_balance"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewLedgerEventMessage builds the message for a mutation of t that left the profile at p.
func NewLedgerEventMessage(eventID, eventType string, t core.Transaction, p core.Profile, now time.Time) *LedgerEventMessage {
	return &LedgerEventMessage{
		EventID:     eventID,
		Type:        eventType,
		UserID:      p.UserID,
		ProfileID:   p.ProfileID,
		Version:     p.Version,
		Transaction: NewTransactionPayload(t),
		Income:      p.Totals.Income,
		Expense:     p.Totals.Expense,
		Balance:     p.Totals.Balance,
		Timestamp:   now.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes a ledger event.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BillReminderMessage asks the notification collaborator to remind a user of a bill.
type BillReminderMessage struct {
	UserID    int64      `json:"user_id"`
	ProfileID int64      `json:"profile_id"`
	BillKey   string     `json:"bill_key"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Amount    core.Money `json:"amount"`
	DueDate   string     `json:"due_date"` // 2006-01-02
	DueIn     string     `json:"due_in"`
	Timestamp time.Time  `json:"timestamp"`
}

func (m *BillReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BillReminderMessageFromJSON decodes a bill reminder.
func BillReminderMessageFromJSON(data []byte) (*BillReminderMessage, error) {
	var msg BillReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
