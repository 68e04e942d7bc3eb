// Package memory is an in-process sheets.Exporter that stands in for Google
// Sheets in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var (
	_ sheets.Exporter          = (*Store)(nil)
	_ sheets.TransactionLister = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	rows  []core.Transaction
	total int
}

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the row and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, tx)
	s.total++
	return fmt.Sprintf("mem:%d", s.total), nil
}

// DeleteTransaction drops every row with id.
func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, tx := range s.rows {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	s.rows = kept
	return nil
}

// ListTransactions returns the rows in append order.
func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...), nil
}
