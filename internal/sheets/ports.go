package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends one ledger row.
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// TransactionDeleter removes the row of a transaction. A missing row is
	// not an error.
	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id string) error
	}

	// TransactionLister reads back the exported rows.
	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// Exporter is everything the export worker needs.
	Exporter interface {
		TransactionWriter
		TransactionDeleter
	}
)
