package sheets

import (
	"time"

	"fintrack/internal/core"
)

// RowDateLayout is how exported rows store dates.
const RowDateLayout = "2006-01-02"

// Mismatch is a transaction whose exported row disagrees with the ledger.
type Mismatch struct {
	ID     string
	Fields []string
}

// Diff is the result of comparing the ledger with the exported rows.
type Diff struct {
	// Missing are ledger transactions with no row.
	Missing []core.Transaction
	// Extra are rows with no ledger transaction, including repeated ids.
	Extra   []core.Transaction
	Changed []Mismatch
}

// InSync reports whether the rows mirror the ledger exactly.
func (d Diff) InSync() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Changed) == 0
}

// Compare matches rows to ledger transactions by id. Dates are compared at
// day precision in UTC, which is all a row keeps.
func Compare(ledger, rows []core.Transaction) Diff {
	byID := make(map[string]core.Transaction, len(rows))
	var d Diff
	for _, row := range rows {
		if _, dup := byID[row.ID]; dup {
			d.Extra = append(d.Extra, row)
			continue
		}
		byID[row.ID] = row
	}

	seen := make(map[string]bool, len(ledger))
	for _, tx := range ledger {
		seen[tx.ID] = true
		row, ok := byID[tx.ID]
		if !ok {
			d.Missing = append(d.Missing, tx)
			continue
		}
		if fields := changedFields(tx, row); len(fields) > 0 {
			d.Changed = append(d.Changed, Mismatch{ID: tx.ID, Fields: fields})
		}
	}
	for _, row := range rows {
		if !seen[row.ID] {
			d.Extra = append(d.Extra, row)
			seen[row.ID] = true
		}
	}
	return d
}

func changedFields(tx, row core.Transaction) []string {
	var fields []string
	if day(tx.Date) != day(row.Date) {
		fields = append(fields, "date")
	}
	if tx.Type != row.Type {
		fields = append(fields, "type")
	}
	if !tx.Amount.Equal(row.Amount) {
		fields = append(fields, "amount")
	}
	if tx.Category != row.Category {
		fields = append(fields, "category")
	}
	if tx.Note != row.Note {
		fields = append(fields, "note")
	}
	return fields
}

func day(t time.Time) string {
	return t.UTC().Format(RowDateLayout)
}
