// Package advice asks a text-generation model for personal finance tips.
//
// Advise never fails: any problem reaching or parsing the model is logged and
// replaced by a single user-facing message.
package advice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const (
	// FallbackEmpty is returned when the model answers with no text.
	FallbackEmpty = "Не удалось получить советы от AI."
	// FallbackError is returned on transport failures and unusable answers.
	FallbackError = "Произошла ошибка при соединении с AI консультантом."

	flightKey = "advice"
)

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("advice generator not configured")

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is the Generator used when no API key is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// Options configures an Advisor.
type Options struct {
	// Timeout bounds a single generation. Zero means no limit.
	Timeout time.Duration
	Logger  *applog.Logger
}

// Advisor turns a ledger snapshot into advice. Concurrent calls share one
// in-flight request.
type Advisor struct {
	gen     Generator
	timeout time.Duration
	logger  *applog.Logger

	group    singleflight.Group
	inflight atomic.Int32
}

func New(gen Generator, opts Options) *Advisor {
	if gen == nil {
		gen = Disabled{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Advisor{
		gen:     gen,
		timeout: opts.Timeout,
		logger:  logger.WithComponent(applog.ComponentAdvice),
	}
}

// Loading reports whether a request is in flight.
func (a *Advisor) Loading() bool {
	return a.inflight.Load() > 0
}

// Advise returns the model's tips for txs and sum. Callers arriving while a
// request is in flight wait for it and receive the same answer. The request
// outlives any one caller and is bounded only by the configured timeout; a
// caller whose ctx ends stops waiting and gets FallbackError.
func (a *Advisor) Advise(ctx context.Context, txs []core.Transaction, sum core.FinancialSummary) []string {
	flight := context.WithoutCancel(ctx)
	ch := a.group.DoChan(flightKey, func() (any, error) {
		a.inflight.Add(1)
		defer a.inflight.Add(-1)
		return a.fetch(flight, txs, sum), nil
	})

	var tips []string
	select {
	case res := <-ch:
		tips = res.Val.([]string)
	case <-ctx.Done():
		a.logger.WarnContext(ctx, "Stopped waiting for advice",
			applog.FieldOperation, applog.OpGenerate,
			applog.FieldError, ctx.Err())
		return []string{FallbackError}
	}
	out := make([]string, len(tips))
	copy(out, tips)
	return out
}

func (a *Advisor) fetch(ctx context.Context, txs []core.Transaction, sum core.FinancialSummary) []string {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := a.gen.Generate(ctx, BuildPrompt(txs, sum))
	if err != nil {
		a.logger.ErrorContext(ctx, "Advice request failed",
			applog.FieldOperation, applog.OpGenerate,
			applog.FieldError, err,
			applog.FieldDuration, time.Since(start).Milliseconds())
		return []string{FallbackError}
	}
	if text == "" {
		a.logger.WarnContext(ctx, "Advice response was empty", applog.FieldOperation, applog.OpGenerate)
		return []string{FallbackEmpty}
	}

	tips, err := parseTips(text)
	if err != nil {
		a.logger.ErrorContext(ctx, "Advice response unusable",
			applog.FieldOperation, applog.OpParse,
			applog.FieldError, err)
		return []string{FallbackError}
	}

	a.logger.InfoContext(ctx, "Advice generated",
		applog.FieldCount, len(tips),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return tips
}

// parseTips accepts exactly a JSON array of strings, of any length.
func parseTips(text string) ([]string, error) {
	var tips []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &tips); err != nil {
		return nil, fmt.Errorf("decode tips: %w", err)
	}
	if tips == nil {
		return nil, errors.New("decode tips: null")
	}
	return tips, nil
}
