package telegram

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

const (
	textAccessDenied  = "⛔ Доступ запрещён."
	textStorageError  = "Не удалось сохранить изменения. Попробуйте позже."
	textDeleted       = "🗑 Транзакция удалена."
	textNotFound      = "Транзакция не найдена."
	textNoData        = "Нет данных для отображения."
	textUsageDelete   = "Использование: /delete <id>"
	textAdviceStarted = "🤖 Анализирую ваши финансы..."
	textAdviceWait    = "⏳ Совет уже готовится, подождите."
	textNoAdvice      = "Советов пока нет. Добавьте транзакции и попробуйте снова."
)

const textHelp = `Команды:
/summary — баланс, доходы и расходы
/recent — последние транзакции
/expense <сумма> <категория> [заметка] — добавить расход
/income <сумма> <категория> [заметка] — добавить доход
/delete <id> — удалить транзакцию
/analytics — расходы по категориям и динамика
/advice — советы по финансам`

func formatGreeting(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		name = "друг"
	}
	return fmt.Sprintf("Привет, %s! 👋\n\n%s", name, textHelp)
}

func formatSummary(sum core.FinancialSummary, currency string) string {
	return fmt.Sprintf("💰 Баланс: %s\n📈 Доходы: %s\n📉 Расходы: %s",
		core.FormatAmount(sum.Balance, currency),
		core.FormatAmount(sum.TotalIncome, currency),
		core.FormatAmount(sum.TotalExpense, currency))
}

func formatRecent(txs []core.Transaction, currency string) string {
	if len(txs) == 0 {
		return "Транзакций пока нет."
	}
	var b strings.Builder
	b.WriteString("Последние транзакции:\n")
	for _, tx := range txs {
		fmt.Fprintf(&b, "\n%s %s · %s", tx.Date.Format("02.01"), formatSignedLine(tx, currency), tx.ID)
	}
	return b.String()
}

func formatSignedLine(tx core.Transaction, currency string) string {
	line := core.FormatSigned(tx, currency) + " " + tx.Category
	if tx.Note != "" {
		line += " (" + tx.Note + ")"
	}
	return line
}

func formatCreated(tx core.Transaction, currency string) string {
	return fmt.Sprintf("✅ Добавлено: %s\nid: %s", formatSignedLine(tx, currency), tx.ID)
}

func formatCategories(buckets []core.CategoryBucket, currency string) string {
	if len(buckets) == 0 {
		return "Расходов пока нет."
	}
	var b strings.Builder
	b.WriteString("Расходы по категориям:\n")
	for _, c := range buckets {
		fmt.Fprintf(&b, "\n• %s: %s", c.Name, core.FormatAmount(c.Value, currency))
	}
	return b.String()
}

func formatAdvice(tips []string) string {
	if len(tips) == 0 {
		return textNoAdvice
	}
	var b strings.Builder
	b.WriteString("💡 Советы:\n")
	for i, tip := range tips {
		fmt.Fprintf(&b, "\n%d. %s", i+1, tip)
	}
	return b.String()
}

func usageAdd(typ core.TxType) string {
	cmd := "/expense"
	if typ == core.Income {
		cmd = "/income"
	}
	return fmt.Sprintf("Использование: %s <сумма> <категория> [заметка]\nКатегории: %s",
		cmd, strings.Join(typ.Categories(), ", "))
}

func granularityLabel(g core.Granularity) string {
	switch g {
	case core.Week:
		return "неделя"
	case core.Year:
		return "год"
	default:
		return "месяц"
	}
}
