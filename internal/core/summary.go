package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// FinancialSummary holds the ledger totals. Balance is always
// TotalIncome - TotalExpense.
type FinancialSummary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
}

// CategoryBucket is the expense total of one category.
type CategoryBucket struct {
	Name  string
	Value decimal.Decimal
}

// Summarize totals income and expense in a single pass. An empty ledger
// yields an all-zero summary.
func Summarize(txs []Transaction) FinancialSummary {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			income = income.Add(tx.Amount)
		case Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	return FinancialSummary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}

// ByCategory groups expenses by category label, largest total first.
// Ties keep the order in which the categories were first seen. Income is
// ignored and categories that sum to zero are dropped.
func ByCategory(txs []Transaction) []CategoryBucket {
	index := make(map[string]int)
	buckets := make([]CategoryBucket, 0)
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(buckets)
			index[tx.Category] = i
			buckets = append(buckets, CategoryBucket{Name: tx.Category, Value: decimal.Zero})
		}
		buckets[i].Value = buckets[i].Value.Add(tx.Amount)
	}

	out := buckets[:0]
	for _, b := range buckets {
		if !b.Value.IsZero() {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out
}
