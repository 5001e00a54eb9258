package amqp

import (
	"encoding/json"
	"time"
)

// Event types carried on the expense event queue.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
)

// ExpenseEvent is the lightweight payload published for every expense
// mutation. It carries only ids; consumers fetch the full row from storage.
type ExpenseEvent struct {
	Type      string    `json:"type"`
	ExpenseID int64     `json:"expense_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event of the given type for one expense.
func NewExpenseEvent(eventType string, expenseID, userID int64) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      eventType,
		ExpenseID: expenseID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes an event from JSON bytes.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
