package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/view"
)

const recentLimit = 5

const callbackPeriodPrefix = "period:"

func (b *Bot) handleCommand(ctx context.Context, chatID int64, from *tgbotapi.User, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, chatID, from)
	case "summary":
		b.sessions.Dispatch(chatID, view.SelectTab{Tab: view.TabDashboard})
		b.reply(ctx, chatID, formatSummary(core.Summarize(b.txs.List()), b.currency))
	case "recent":
		b.sessions.Dispatch(chatID, view.SelectTab{Tab: view.TabHistory})
		b.reply(ctx, chatID, formatRecent(core.Recent(b.txs.List(), recentLimit), b.currency))
	case "expense":
		b.handleAdd(ctx, chatID, core.Expense, args)
	case "income":
		b.handleAdd(ctx, chatID, core.Income, args)
	case "delete":
		b.handleDelete(ctx, chatID, args)
	case "analytics":
		b.handleAnalytics(ctx, chatID)
	case "advice":
		b.handleAdvice(ctx, chatID)
	default:
		b.reply(ctx, chatID, textHelp)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	msg := tgbotapi.NewMessage(chatID, formatGreeting(from.FirstName))
	if b.webAppURL != "" {
		msg.ReplyMarkup = webAppKeyboard(b.webAppURL)
	}
	b.send(ctx, msg)
}

// handleAdd parses "<amount> <category> [note]". Anything that does not
// produce a transaction is answered with usage help, never an error text.
func (b *Bot) handleAdd(ctx context.Context, chatID int64, typ core.TxType, args string) {
	b.sessions.Dispatch(chatID, view.OpenModal{})
	if args == "" {
		b.reply(ctx, chatID, usageAdd(typ))
		return
	}

	tx, err := b.txs.Create(ctx, parseDraft(typ, args))
	b.sessions.Dispatch(chatID, view.SubmitResult{Created: err == nil})
	switch {
	case errors.Is(err, core.ErrValidation):
		b.reply(ctx, chatID, usageAdd(typ))
	case err != nil:
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to create transaction from chat",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpCreate)
		b.reply(ctx, chatID, textStorageError)
	default:
		b.reply(ctx, chatID, formatCreated(tx, b.currency))
	}
}

// parseDraft splits the arguments of /expense and /income. An unreadable
// amount leaves Amount nil so validation rejects the draft.
func parseDraft(typ core.TxType, args string) core.Draft {
	fields := strings.Fields(args)
	d := core.Draft{Type: typ}
	if len(fields) == 0 {
		return d
	}
	if amount, err := core.ParseAmount(fields[0]); err == nil {
		d.Amount = &amount
	}
	if len(fields) > 1 {
		d.Category = fields[1]
	}
	if len(fields) > 2 {
		d.Note = strings.Join(fields[2:], " ")
	}
	return d
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, id string) {
	if id == "" {
		b.reply(ctx, chatID, textUsageDelete)
		return
	}
	removed, err := b.txs.Delete(ctx, id)
	switch {
	case err != nil:
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to delete transaction from chat",
			applog.FieldError, err,
			applog.FieldTransactionID, id)
		b.reply(ctx, chatID, textStorageError)
	case removed:
		b.reply(ctx, chatID, textDeleted)
	default:
		b.reply(ctx, chatID, textNotFound)
	}
}

func (b *Bot) handleAnalytics(ctx context.Context, chatID int64) {
	_, st := b.sessions.Dispatch(chatID, view.SelectTab{Tab: view.TabAnalytics})
	txs := b.txs.List()

	msg := tgbotapi.NewMessage(chatID, formatCategories(core.ByCategory(txs), b.currency))
	msg.ReplyMarkup = granularityKeyboard(st.Granularity)
	b.send(ctx, msg)
	b.sendTimeline(ctx, chatID, txs, st.Granularity)
}

func (b *Bot) sendTimeline(ctx context.Context, chatID int64, txs []core.Transaction, g core.Granularity) {
	img, err := b.renderer.Timeline(core.TimelineWith(txs, g, b.calendar))
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to render timeline",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
		return
	}
	if img == nil {
		b.reply(ctx, chatID, textNoData)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "timeline.png", Bytes: img})
	photo.Caption = "Динамика: " + granularityLabel(g)
	b.send(ctx, photo)
}

func (b *Bot) handleCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	if !strings.HasPrefix(cb.Data, callbackPeriodPrefix) {
		b.answer(ctx, cb.ID, "")
		return
	}
	g := core.ParseGranularity(strings.TrimPrefix(cb.Data, callbackPeriodPrefix))
	b.sessions.Dispatch(chatID, view.SelectGranularity{Granularity: g})
	b.answer(ctx, cb.ID, "Период: "+granularityLabel(g))
	b.sendTimeline(ctx, chatID, b.txs.List(), g)
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Failed to answer callback", applog.FieldError, err)
	}
}

// handleAdvice starts one advice request per chat. Asking again while it
// runs only gets a wait notice.
func (b *Bot) handleAdvice(ctx context.Context, chatID int64) {
	before, _ := b.sessions.Dispatch(chatID, view.AdviceRequested{})
	if before.Loading {
		b.reply(ctx, chatID, textAdviceWait)
		return
	}
	b.reply(ctx, chatID, textAdviceStarted)

	txs := b.txs.List()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		tips := b.advisor.Advise(ctx, txs, core.Summarize(txs))
		_, st := b.sessions.Dispatch(chatID, view.AdviceReceived{Tips: tips})
		b.reply(ctx, chatID, formatAdvice(st.Advice))
	}()
}
