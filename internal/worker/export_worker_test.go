package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets/memory"
)

func tx(id string) core.Transaction {
	return core.Transaction{
		ID:       id,
		Amount:   decimal.NewFromInt(1200),
		Type:     core.Expense,
		Category: "Еда",
		Date:     time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestExportWorker_CreateThenDelete(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store, applog.Discard())
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := w.HandleEvent(ctx, amqp.NewCreatedEvent(tx(id))); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := w.HandleEvent(ctx, amqp.NewDeletedEvent(core.Transaction{ID: "a"})); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting again is harmless.
	if err := w.HandleEvent(ctx, amqp.NewDeletedEvent(core.Transaction{ID: "a"})); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	rows, _ := store.ListTransactions(ctx)
	if len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("rows = %+v, want only b", rows)
	}
}

type failingExporter struct{}

func (failingExporter) AppendTransaction(context.Context, core.Transaction) (string, error) {
	return "", errors.New("quota exceeded")
}

func (failingExporter) DeleteTransaction(context.Context, string) error {
	return errors.New("quota exceeded")
}

func TestExportWorker_ErrorsAreReturned(t *testing.T) {
	w := NewExportWorker(failingExporter{}, applog.Discard())
	ctx := context.Background()

	if err := w.HandleEvent(ctx, amqp.NewCreatedEvent(tx("a"))); err == nil {
		t.Error("append failure should be returned for requeue")
	}
	if err := w.HandleEvent(ctx, amqp.NewDeletedEvent(tx("a"))); err == nil {
		t.Error("delete failure should be returned for requeue")
	}
}

func TestExportWorker_UnknownKind(t *testing.T) {
	w := NewExportWorker(failingExporter{}, applog.Discard())
	ev := &amqp.LedgerEvent{Kind: "transaction.updated", Transaction: amqp.PayloadFrom(tx("a"))}
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Errorf("unknown kinds are dropped, got %v", err)
	}
}
