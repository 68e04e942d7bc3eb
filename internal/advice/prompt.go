package advice

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// DigestLimit caps how many transactions are described to the model.
const DigestLimit = 50

// Digest renders the first DigestLimit transactions, in stored order, one
// line each.
func Digest(txs []core.Transaction) string {
	if len(txs) > DigestLimit {
		txs = txs[:DigestLimit]
	}
	lines := make([]string, 0, len(txs))
	for _, tx := range txs {
		kind := "Трата"
		if tx.Type == core.Income {
			kind = "Доход"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s %s руб. (%s)",
			tx.Date.UTC().Format("2006-01-02"), kind, tx.Amount.String(), tx.Category))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt composes the request sent to the model: the three totals, the
// digest and the answer format.
func BuildPrompt(txs []core.Transaction, sum core.FinancialSummary) string {
	var b strings.Builder
	b.WriteString("Ты — элитный финансовый консультант. Проанализируй данные пользователя.\n\n")
	b.WriteString("Текущее состояние:\n")
	fmt.Fprintf(&b, "- Общий доход: %s руб.\n", sum.TotalIncome.String())
	fmt.Fprintf(&b, "- Общий расход: %s руб.\n", sum.TotalExpense.String())
	fmt.Fprintf(&b, "- Баланс: %s руб.\n\n", sum.Balance.String())
	b.WriteString("Последние транзакции:\n")
	b.WriteString(Digest(txs))
	b.WriteString("\n\n")
	b.WriteString("Дай 3 конкретных, кратких и полезных совета на русском языке по улучшению финансового положения, основанных на этих данных.\n")
	b.WriteString(`Формат: JSON массив строк. Пример: ["Совет 1", "Совет 2", "Совет 3"]` + "\n")
	b.WriteString("Не используй markdown разметку, просто верни чистый JSON.\n")
	return b.String()
}
