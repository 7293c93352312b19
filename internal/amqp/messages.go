package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budgetd/internal/core"
)

// BudgetAssignedMessage announces that a budget cell was persisted. It carries
// the full row so the consumer does not need to read it back.
type BudgetAssignedMessage struct {
	UserID        string    `json:"user_id"`
	CategoryID    int64     `json:"category_id"`
	Month         string    `json:"month"`
	AssignedCents int64     `json:"assigned_cents"`
	ActualCents   int64     `json:"actual_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewBudgetAssignedMessage(row core.BudgetRow) *BudgetAssignedMessage {
	return &BudgetAssignedMessage{
		UserID:        row.UserID,
		CategoryID:    row.CategoryID,
		Month:         string(row.Month),
		AssignedCents: row.Assigned.Cents,
		ActualCents:   row.Actual.Cents,
		Timestamp:     time.Now(),
	}
}

// Row converts the message back into a budget row, validating it.
func (m *BudgetAssignedMessage) Row() (core.BudgetRow, error) {
	if m.Month == "" {
		return core.BudgetRow{}, fmt.Errorf("%w: empty", core.ErrInvalidMonth)
	}
	month, err := core.ParseMonth(m.Month)
	if err != nil {
		return core.BudgetRow{}, err
	}
	row := core.BudgetRow{
		UserID:     m.UserID,
		CategoryID: m.CategoryID,
		Month:      month,
		Assigned:   core.Cents(m.AssignedCents),
		Actual:     core.Cents(m.ActualCents),
	}
	return row, row.Validate()
}

func (m *BudgetAssignedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAssignedMessageFromJSON(data []byte) (*BudgetAssignedMessage, error) {
	var msg BudgetAssignedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
