package worker

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// ExportWorker mirrors ledger events into a spreadsheet.
type ExportWorker struct {
	exporter sheets.Exporter
	logger   *applog.Logger
}

func NewExportWorker(exporter sheets.Exporter, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportWorker{
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent routes one event. Errors are returned so the consumer requeues
// the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	id := ev.Transaction.ID
	w.logger.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		applog.FieldTransactionID, id,
		"timestamp", ev.Timestamp)

	switch ev.Kind {
	case amqp.EventCreated:
		ref, err := w.exporter.AppendTransaction(ctx, ev.Transaction.Core())
		if err != nil {
			return fmt.Errorf("export transaction %s: %w", id, err)
		}
		w.logger.InfoContext(ctx, "Transaction exported",
			applog.FieldOperation, applog.OpSync,
			applog.FieldTransactionID, id,
			"sheets_ref", ref)
	case amqp.EventDeleted:
		if err := w.exporter.DeleteTransaction(ctx, id); err != nil {
			return fmt.Errorf("delete exported transaction %s: %w", id, err)
		}
		w.logger.InfoContext(ctx, "Exported transaction removed",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldTransactionID, id)
	default:
		// Validated events never get here; drop rather than requeue forever.
		w.logger.WarnContext(ctx, "Ignoring unknown ledger event", "kind", ev.Kind)
	}
	return nil
}
