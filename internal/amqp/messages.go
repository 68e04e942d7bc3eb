package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// EventKind names a ledger change.
type EventKind string

const (
	EventCreated EventKind = "transaction.created"
	EventDeleted EventKind = "transaction.deleted"
)

// ErrInvalidEvent is returned for messages the worker cannot route.
var ErrInvalidEvent = errors.New("invalid ledger event")

// TransactionPayload is the wire form of a transaction.
type TransactionPayload struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Type     core.TxType     `json:"type"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
	Note     string          `json:"note,omitempty"`
}

// LedgerEvent announces that a transaction was created or removed. Deleted
// events always carry the id; the other fields are filled when known.
type LedgerEvent struct {
	Kind        EventKind          `json:"kind"`
	Transaction TransactionPayload `json:"transaction"`
	Timestamp   time.Time          `json:"timestamp"`
}

func NewCreatedEvent(tx core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		Kind:        EventCreated,
		Transaction: PayloadFrom(tx),
		Timestamp:   time.Now().UTC(),
	}
}

func NewDeletedEvent(tx core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		Kind:        EventDeleted,
		Transaction: PayloadFrom(tx),
		Timestamp:   time.Now().UTC(),
	}
}

func PayloadFrom(tx core.Transaction) TransactionPayload {
	return TransactionPayload{
		ID:       tx.ID,
		Amount:   tx.Amount,
		Type:     tx.Type,
		Category: tx.Category,
		Date:     tx.Date.UTC(),
		Note:     tx.Note,
	}
}

// Core converts the payload back into a domain transaction.
func (p TransactionPayload) Core() core.Transaction {
	return core.Transaction{
		ID:       p.ID,
		Amount:   p.Amount,
		Type:     p.Type,
		Category: p.Category,
		Date:     p.Date,
		Note:     p.Note,
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (e *LedgerEvent) Validate() error {
	if strings.TrimSpace(e.Transaction.ID) == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidEvent)
	}
	switch e.Kind {
	case EventCreated:
		if err := e.Transaction.Core().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	case EventDeleted:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}
