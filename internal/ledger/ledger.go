// Package ledger owns the canonical transaction list and its persistence.
//
// The whole list is written under a single key on every mutation. Each
// mutation starts from the stored blob inside one storage update, so several
// processes can share a backend without overwriting each other. The
// in-memory list only changes after the write succeeds, so a failed write
// leaves the ledger exactly as it was.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// StorageKey is the blob key the ledger persists under.
const StorageKey = "transactions"

// Options configures Open. The zero value disables seeding and uses real
// clocks and random ids.
type Options struct {
	// Seed installs the example transactions when nothing is stored yet.
	Seed   bool
	Logger *applog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Store is the ledger. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	kv       storage.Store
	txs      []core.Transaction
	revision uint64
	// blob is the stored form of txs as last read or written.
	blob []byte

	logger *applog.Logger
	now    func() time.Time
	newID  func() string
}

// Open loads the ledger from kv. An absent blob yields the seed set (when
// enabled) or an empty ledger; a corrupt blob is logged and treated as empty
// without being overwritten until the next mutation.
func Open(ctx context.Context, kv storage.Store, opts Options) (*Store, error) {
	s := &Store{
		kv:     kv,
		logger: opts.Logger,
		now:    opts.Now,
		newID:  opts.NewID,
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentLedger)
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}

	data, ok, err := kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	switch {
	case !ok && opts.Seed:
		seed := SeedTransactions(s.now())
		if blob, err := s.persist(ctx, seed); err != nil {
			s.logger.WarnContext(ctx, "Failed to persist seed transactions",
				applog.FieldOperation, applog.OpPersist,
				applog.FieldError, err)
		} else {
			s.blob = blob
		}
		s.txs = seed
		s.logger.InfoContext(ctx, "Ledger seeded with example transactions", applog.FieldCount, len(seed))
	case !ok:
		s.txs = []core.Transaction{}
	default:
		txs, rejected, err := Decode(data)
		if err != nil {
			s.logger.WarnContext(ctx, "Stored ledger is corrupt, starting empty",
				applog.FieldOperation, applog.OpLoad,
				applog.FieldError, err)
			txs = []core.Transaction{}
		}
		s.logRejected(ctx, rejected)
		s.txs = txs
		s.blob = data
		s.logger.InfoContext(ctx, "Ledger loaded", applog.FieldCount, len(txs), "rejected", len(rejected))
	}

	return s, nil
}

// SeedTransactions returns the example ledger shown to first-time users.
func SeedTransactions(now time.Time) []core.Transaction {
	now = now.UTC().Truncate(time.Millisecond)
	const day = 24 * time.Hour
	return []core.Transaction{
		{ID: "1", Amount: decimal.NewFromInt(85000), Category: "Зарплата", Type: core.Income, Date: now.Add(-2 * day), Note: "Аванс"},
		{ID: "2", Amount: decimal.NewFromInt(1200), Category: "Еда", Type: core.Expense, Date: now.Add(-1 * day), Note: "Обед"},
		{ID: "3", Amount: decimal.NewFromInt(3500), Category: "Развлечения", Type: core.Expense, Date: now, Note: "Кино и ужин"},
	}
}

// List returns a copy of the ledger, most recently added first.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

// Get returns the transaction with the given id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

// Revision increases on every successful mutation.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Add validates the draft, assigns a fresh id and prepends the transaction.
// Validation errors wrap core.ErrValidation and leave the ledger untouched.
func (s *Store) Add(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var tx core.Transaction
	err := s.mutate(ctx, func(base []core.Transaction) []core.Transaction {
		tx = d.Transaction(s.uniqueID(base), s.now())
		tx.Date = tx.Date.Truncate(time.Millisecond)

		next := make([]core.Transaction, 0, len(base)+1)
		next = append(next, tx)
		return append(next, base...)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// Remove deletes the transaction with id if present and persists the result
// either way. Removing an unknown id is not an error; removed reports whether
// anything matched.
func (s *Store) Remove(ctx context.Context, id string) (removed bool, err error) {
	_, removed, err = s.Take(ctx, id)
	return removed, err
}

// Take is Remove that also returns the removed transaction as it was stored.
func (s *Store) Take(ctx context.Context, id string) (tx core.Transaction, removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.mutate(ctx, func(base []core.Transaction) []core.Transaction {
		removed = false
		next := make([]core.Transaction, 0, len(base))
		for _, cur := range base {
			if cur.ID == id {
				tx, removed = cur, true
				continue
			}
			next = append(next, cur)
		}
		return next
	})
	if err != nil {
		return core.Transaction{}, false, err
	}
	return tx, removed, nil
}

// Reload picks up writes made through the backend by other processes.
// changed reports whether the ledger differs from what this Store last saw;
// a corrupt blob is logged and ignored.
func (s *Store) Reload(ctx context.Context) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}
	if !ok || bytes.Equal(data, s.blob) {
		return false, nil
	}
	txs, rejected, err := Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored ledger is corrupt, keeping loaded copy",
			applog.FieldOperation, applog.OpRead,
			applog.FieldError, err)
		return false, nil
	}
	s.logRejected(ctx, rejected)
	s.txs = txs
	s.blob = data
	s.revision++
	s.logger.InfoContext(ctx, "Ledger reloaded", applog.FieldCount, len(txs))
	return true, nil
}

// Ping checks the backing store.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *Store) persist(ctx context.Context, txs []core.Transaction) ([]byte, error) {
	data, err := Encode(txs)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.kv.Put(ctx, StorageKey, data); err != nil {
		return nil, fmt.Errorf("persist ledger: %w", err)
	}
	return data, nil
}

// mutate rebuilds the ledger from the stored blob with change and writes the
// result in one storage update. Callers hold mu.
func (s *Store) mutate(ctx context.Context, change func(base []core.Transaction) []core.Transaction) error {
	var (
		next []core.Transaction
		data []byte
	)
	err := s.kv.Update(ctx, StorageKey, func(cur []byte, ok bool) ([]byte, error) {
		next = change(s.base(ctx, cur, ok))
		var err error
		if data, err = Encode(next); err != nil {
			return nil, fmt.Errorf("encode ledger: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	s.txs = next
	s.blob = data
	s.revision++
	return nil
}

// base decodes the stored blob a mutation starts from. An absent blob falls
// back to the in-memory list, which may hold an unpersisted seed; a corrupt
// one counts as empty and is replaced.
func (s *Store) base(ctx context.Context, cur []byte, ok bool) []core.Transaction {
	if !ok {
		out := make([]core.Transaction, len(s.txs))
		copy(out, s.txs)
		return out
	}
	txs, rejected, err := Decode(cur)
	if err != nil {
		s.logger.WarnContext(ctx, "Replacing corrupt stored ledger",
			applog.FieldOperation, applog.OpPersist,
			applog.FieldError, err)
		return []core.Transaction{}
	}
	s.logRejected(ctx, rejected)
	return txs
}

func (s *Store) logRejected(ctx context.Context, rejected []Rejected) {
	for _, r := range rejected {
		s.logger.WarnContext(ctx, "Skipping malformed stored transaction",
			applog.FieldOperation, applog.OpLoad,
			"index", r.Index,
			"reason", r.Reason)
	}
}

// uniqueID draws ids until one is unused in txs.
func (s *Store) uniqueID(txs []core.Transaction) string {
	for {
		id := s.newID()
		if !hasID(txs, id) {
			return id
		}
	}
}

func hasID(txs []core.Transaction, id string) bool {
	for _, tx := range txs {
		if tx.ID == id {
			return true
		}
	}
	return false
}

// IsValidation reports whether err is a draft validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, core.ErrValidation)
}
