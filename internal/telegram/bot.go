// Package telegram is the chat front end: commands for entering and reviewing
// transactions, analytics with charts, and advice.
package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fintrack/internal/charts"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/view"
)

// API is the subset of *tgbotapi.BotAPI the bot calls.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Transactions is the ledger surface the bot uses.
type Transactions interface {
	List() []core.Transaction
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Advisor produces advice tips.
type Advisor interface {
	Advise(ctx context.Context, txs []core.Transaction, sum core.FinancialSummary) []string
}

type Options struct {
	// AllowedUsers restricts the bot to these Telegram ids. Empty allows all.
	AllowedUsers []int64
	WebAppURL    string
	Currency     string
	Location     *time.Location
	Logger       *applog.Logger
}

type Bot struct {
	api      API
	txs      Transactions
	advisor  Advisor
	renderer *charts.Renderer
	sessions *view.Sessions

	allowed   map[int64]bool
	webAppURL string
	currency  string
	calendar  core.Calendar
	logger    *applog.Logger

	// background advice requests
	wg sync.WaitGroup
}

func New(api API, txs Transactions, advisor Advisor, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	allowed := make(map[int64]bool, len(opts.AllowedUsers))
	for _, id := range opts.AllowedUsers {
		allowed[id] = true
	}
	return &Bot{
		api:       api,
		txs:       txs,
		advisor:   advisor,
		renderer:  charts.NewRenderer(nil),
		sessions:  view.NewSessions(),
		allowed:   allowed,
		webAppURL: opts.WebAppURL,
		currency:  opts.Currency,
		calendar:  core.RussianCalendar(opts.Location),
		logger:    opts.Logger.WithComponent(applog.ComponentBot),
	}
}

// Run handles updates until ctx is done or updates closes, then waits for
// in-flight advice replies.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Poll long-polls the Bot API and runs the bot until ctx is done.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, b *Bot) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()
	b.logger.InfoContext(ctx, "Telegram bot polling", "username", api.Self.UserName)
	return b.Run(ctx, updates)
}

// HandleUpdate dispatches one update. Unknown update kinds are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var (
		from   *tgbotapi.User
		chatID int64
	)
	switch {
	case update.Message != nil:
		from, chatID = update.Message.From, update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		from, chatID = update.CallbackQuery.From, update.CallbackQuery.Message.Chat.ID
	default:
		return
	}
	if from == nil {
		return
	}

	logger := b.logger.With(applog.FieldChatID, chatID, applog.FieldUserID, from.ID)
	ctx = applog.NewContext(ctx, logger)

	if !b.isAllowed(from.ID) {
		logger.WarnContext(ctx, "Rejected update from unknown user")
		b.reply(ctx, chatID, textAccessDenied)
		return
	}

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, chatID, update.CallbackQuery)
		return
	}
	if update.Message.IsCommand() {
		b.handleCommand(ctx, chatID, from, update.Message)
		return
	}
	b.reply(ctx, chatID, textHelp)
}

func (b *Bot) isAllowed(id int64) bool {
	return len(b.allowed) == 0 || b.allowed[id]
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to send message", applog.FieldError, err)
	}
}
