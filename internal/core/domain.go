package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

type (
	// TxType is the direction of a transaction.
	TxType string

	// Transaction is a single immutable ledger entry. Amount is unsigned; the
	// direction lives in Type.
	Transaction struct {
		ID       string
		Amount   decimal.Decimal
		Type     TxType
		Category string
		Date     time.Time
		Note     string
	}

	// Draft is a user submission that has not been assigned an id yet.
	// A nil Amount means the field was left empty.
	Draft struct {
		Amount   *decimal.Decimal
		Type     TxType
		Category string
		Date     time.Time
		Note     string
	}
)

var (
	// ErrValidation is wrapped by every draft validation failure.
	ErrValidation = errors.New("validation failed")

	ErrMissingAmount   = errors.New("missing amount")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrMissingCategory = errors.New("missing category")
	ErrInvalidType     = errors.New("invalid transaction type")
)

// Suggested category sets offered by the entry forms. They are not enforced.
var (
	ExpenseCategories = []string{"Еда", "Транспорт", "Жилье", "Развлечения", "Здоровье", "Покупки", "Другое"}
	IncomeCategories  = []string{"Зарплата", "Фриланс", "Подарки", "Инвестиции", "Другое"}
)

// ParseTxType accepts "income" or "expense" in any case.
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(strings.ToLower(strings.TrimSpace(s))); t {
	case Income, Expense:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (t TxType) String() string {
	return string(t)
}

// Categories returns the suggested category set for the type.
func (t TxType) Categories() []string {
	if t == Income {
		return IncomeCategories
	}
	return ExpenseCategories
}

// Validate checks the transaction invariants: known type and non-negative amount.
func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if tx.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Validate reports the first reason the draft cannot become a transaction.
// The returned error always wraps ErrValidation.
func (d Draft) Validate() error {
	if d.Amount == nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingAmount)
	}
	if d.Amount.IsNegative() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNegativeAmount)
	}
	if strings.TrimSpace(d.Category) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingCategory)
	}
	if d.Type != "" && !d.Type.Valid() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidType)
	}
	return nil
}

// Transaction builds the ledger entry for a validated draft. Type defaults to
// expense and Date to the start of today in now's location.
func (d Draft) Transaction(id string, now time.Time) Transaction {
	typ := d.Type
	if typ == "" {
		typ = Expense
	}
	date := d.Date
	if date.IsZero() {
		y, m, day := now.Date()
		date = time.Date(y, m, day, 0, 0, 0, 0, now.Location())
	}
	var amount decimal.Decimal
	if d.Amount != nil {
		amount = *d.Amount
	}
	return Transaction{
		ID:       id,
		Amount:   amount,
		Type:     typ,
		Category: strings.TrimSpace(d.Category),
		Date:     date,
		Note:     strings.TrimSpace(d.Note),
	}
}

// SortByDateDesc returns a copy of txs ordered newest first. Equal dates keep
// their relative order.
func SortByDateDesc(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Recent returns the n newest transactions by date.
func Recent(txs []Transaction, n int) []Transaction {
	sorted := SortByDateDesc(txs)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
