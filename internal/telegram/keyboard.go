package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fintrack/internal/core"
)

// webAppKeyboard links to the mini app. v5.5.1 has no web_app button, so a
// URL button is used.
func webAppKeyboard(url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📊 Открыть приложение", url),
		),
	)
}

// granularityKeyboard marks the current period with a check.
func granularityKeyboard(current core.Granularity) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	for _, g := range []core.Granularity{core.Week, core.Month, core.Year} {
		label := granularityLabel(g)
		if g == current {
			label = "✓ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackPeriodPrefix+string(g)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
