package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const publishTimeout = 10 * time.Second

// Ledger is the part of the ledger store the service mutates.
type Ledger interface {
	List() []core.Transaction
	Add(ctx context.Context, d core.Draft) (core.Transaction, error)
	// Take removes id and returns the transaction as it was stored.
	Take(ctx context.Context, id string) (core.Transaction, bool, error)
}

// Publisher announces ledger changes. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// TransactionService orchestrates ledger mutations and change events.
// Events are published in the background, one at a time and in the order the
// mutations committed; a failed publish is logged and never undoes or fails
// the mutation.
type TransactionService struct {
	ledger    Ledger
	publisher Publisher
	logger    *applog.Logger
	events    *applog.StructuredLogger

	// order makes queue order match commit order.
	order sync.Mutex

	mu       sync.Mutex
	queue    []pendingEvent
	draining bool
	pending  sync.WaitGroup
}

type pendingEvent struct {
	ctx context.Context
	ev  *amqp.LedgerEvent
}

// NewTransactionService wires the service. publisher may be nil.
func NewTransactionService(ledger Ledger, publisher Publisher, logger *applog.Logger) *TransactionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentLedger)
	return &TransactionService{
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
	}
}

// List returns the ledger in stored order.
func (s *TransactionService) List() []core.Transaction {
	return s.ledger.List()
}

// Create validates and stores a draft. Validation errors wrap
// core.ErrValidation and nothing is created.
func (s *TransactionService) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	s.order.Lock()
	defer s.order.Unlock()

	tx, err := s.ledger.Add(ctx, d)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.events.LogTransactionCreated(ctx, tx.ID, tx.Type.String(), tx.Amount.String(), tx.Category)
	s.publish(ctx, amqp.NewCreatedEvent(tx))
	return tx, nil
}

// Delete removes id. Deleting an unknown id succeeds; removed reports
// whether anything matched and only then is an event published.
func (s *TransactionService) Delete(ctx context.Context, id string) (removed bool, err error) {
	s.order.Lock()
	defer s.order.Unlock()

	tx, removed, err := s.ledger.Take(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	s.events.LogTransactionDeleted(ctx, id, removed)
	if removed {
		s.publish(ctx, amqp.NewDeletedEvent(tx))
	}
	return removed, nil
}

// publish queues ev behind earlier events. The request may finish before the
// broker answers, so the event keeps ctx's values but not its cancellation.
func (s *TransactionService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping ledger event", "kind", ev.Kind)
		return
	}

	s.pending.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, pendingEvent{ctx: context.WithoutCancel(ctx), ev: ev})
	if !s.draining {
		s.draining = true
		go s.drain()
	}
}

// drain publishes queued events until the queue is empty.
func (s *TransactionService) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = pendingEvent{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.send(next.ctx, next.ev)
		s.pending.Done()
	}
}

func (s *TransactionService) send(ctx context.Context, ev *amqp.LedgerEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.events.LogError(ctx, "Failed to publish ledger event", err, applog.OpSync, applog.LogFields{
			"kind":                    ev.Kind,
			applog.FieldTransactionID: ev.Transaction.ID,
		})
	}
}

// Wait blocks until every queued event has been published or dropped.
func (s *TransactionService) Wait() {
	s.pending.Wait()
}
