package amqp

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"pft/internal/core"
)

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventBudgetAlert        EventType = "budget.alert"
)

// ErrMalformedEvent marks a message body that can never be processed.
var ErrMalformedEvent = errors.New("malformed finance event")

// FinanceEvent is published after every change the finance service makes.
// Transaction events carry the transaction, budget alerts carry the budget
// with its spent/remaining status.
type FinanceEvent struct {
	MessageID   string            `json:"message_id"`
	Type        EventType         `json:"type"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Budget      *core.Budget      `json:"budget,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewTransactionEvent(t EventType, tx core.Transaction) *FinanceEvent {
	return &FinanceEvent{
		MessageID:   uuid.NewString(),
		Type:        t,
		Transaction: &tx,
		Timestamp:   time.Now().UTC(),
	}
}

func NewBudgetAlertEvent(b core.Budget) *FinanceEvent {
	return &FinanceEvent{
		MessageID: uuid.NewString(),
		Type:      EventBudgetAlert,
		Budget:    &b,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *FinanceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FinanceEventFromJSON decodes an event and checks that it carries the
// payload its type needs.
func FinanceEventFromJSON(data []byte) (*FinanceEvent, error) {
	var e FinanceEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch e.Type {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted:
		if e.Transaction == nil {
			return nil, fmt.Errorf("%w: %s without transaction", ErrMalformedEvent, e.Type)
		}
	case EventBudgetAlert:
		if e.Budget == nil {
			return nil, fmt.Errorf("%w: %s without budget", ErrMalformedEvent, e.Type)
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, e.Type)
	}
	return &e, nil
}
