package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

type stubAdvisor struct{ tips []string }

func (s stubAdvisor) Advise(context.Context, []core.Transaction, core.FinancialSummary) []string {
	return s.tips
}

type harness struct {
	ledger *ledger.Store
	sheet  *memory.Store
	tips   []string
	opens  int
}

func newHarness(t *testing.T, seed bool) *harness {
	t.Helper()
	led, err := ledger.Open(context.Background(), storage.NewMemoryStore(), ledger.Options{
		Seed:   seed,
		Logger: applog.Discard(),
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return &harness{ledger: led, sheet: memory.New(), tips: []string{"Откладывайте десять процентов"}}
}

func (h *harness) open(context.Context, string, io.Writer) (*env, error) {
	h.opens++
	return &env{
		txs:      services.NewTransactionService(h.ledger, nil, applog.Discard()),
		advisor:  stubAdvisor{tips: h.tips},
		currency: "RUB",
		location: time.UTC,
		sheet: func(context.Context) (sheets.TransactionLister, error) {
			return h.sheet, nil
		},
		cleanup: func() {},
	}, nil
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(h.open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.run(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Развлечения", "newest first")
	assert.Contains(t, lines[3], "Зарплата")
	assert.Contains(t, lines[3], "+")
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t, false)
	out, err := h.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "No transactions.\n", out)
}

func TestAdd(t *testing.T) {
	h := newHarness(t, false)
	out, err := h.run(t, "add", "--amount", "1200,50", "--category", "Еда", "--date", "2025-03-02", "--note", "обед")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Added "))

	txs := h.ledger.List()
	require.Len(t, txs, 1)
	assert.Equal(t, core.Expense, txs[0].Type)
	assert.Equal(t, "1200.5", txs[0].Amount.String())
	assert.True(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC).Equal(txs[0].Date))
	assert.Equal(t, "обед", txs[0].Note)

	_, err = h.run(t, "add", "--type", "INCOME", "--amount", "85000", "--category", "Зарплата")
	require.NoError(t, err)
	assert.Equal(t, core.Income, h.ledger.List()[0].Type)
}

func TestAddRejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing amount", []string{"add", "--category", "Еда"}, "transaction rejected"},
		{"bad amount", []string{"add", "--amount", "abc", "--category", "Еда"}, "transaction rejected"},
		{"missing category", []string{"add", "--amount", "10"}, "transaction rejected"},
		{"bad type", []string{"add", "--type", "transfer", "--amount", "10", "--category", "x"}, "transaction rejected"},
		{"bad date", []string{"add", "--amount", "10", "--category", "x", "--date", "02.03.2025"}, "invalid date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			_, err := h.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, h.ledger.List())
		})
	}
}

func TestRemove(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.run(t, "rm", "2")
	require.NoError(t, err)
	assert.Equal(t, "Removed 2\n", out)
	assert.Len(t, h.ledger.List(), 2)

	_, err = h.run(t, "delete", "2")
	assert.EqualError(t, err, "transaction 2 not found")

	_, err = h.run(t, "rm")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.run(t, "summary")
	require.NoError(t, err)

	sum := core.Summarize(h.ledger.List())
	assert.Contains(t, out, core.FormatAmount(sum.Balance, "RUB"))
	assert.Contains(t, out, "Income")
	assert.Contains(t, out, "Expense")
}

func TestAnalytics(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.run(t, "analytics", "--period", "year")
	require.NoError(t, err)

	assert.Contains(t, out, "Period: year")
	assert.Contains(t, out, "Развлечения")
	assert.NotContains(t, out, "Зарплата", "income is not a category bucket")
	assert.Contains(t, out, "2025")

	out, err = h.run(t, "analytics", "--period", "decade")
	require.NoError(t, err)
	assert.Contains(t, out, "Period: month")
}

func TestAdvicePlain(t *testing.T) {
	h := newHarness(t, true)
	h.tips = []string{"Первый", "Второй"}
	out, err := h.run(t, "advice", "--plain")
	require.NoError(t, err)
	assert.Equal(t, "# Советы\n\n1. Первый\n2. Второй\n", out)

	h.tips = nil
	out, err = h.run(t, "advice", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Советов пока нет.")
}

func TestAdviceRendered(t *testing.T) {
	h := newHarness(t, true)
	out, err := h.run(t, "advice")
	require.NoError(t, err)
	assert.Contains(t, out, "Откладывайте")
	assert.Contains(t, out, "Советы")
}

func TestEnvOpenedPerCommand(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.run(t, "summary")
	require.NoError(t, err)
	_, err = h.run(t, "nope")
	require.Error(t, err)
	assert.Equal(t, 1, h.opens)
}

func TestExportVerify(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	for _, tx := range h.ledger.List() {
		_, err := h.sheet.AppendTransaction(ctx, tx)
		require.NoError(t, err)
	}

	out, err := h.run(t, "export", "verify")
	require.NoError(t, err)
	assert.Equal(t, "Sheet matches the ledger (3 transactions).\n", out)

	// Row 2 never reached the sheet; a stale row lingers instead.
	require.NoError(t, h.sheet.DeleteTransaction(ctx, "2"))
	stale := h.ledger.List()[0]
	stale.ID = "gone"
	_, err = h.sheet.AppendTransaction(ctx, stale)
	require.NoError(t, err)

	out, err = h.run(t, "export", "verify")
	require.Error(t, err)
	assert.Equal(t, "sheet differs from ledger: 1 missing, 1 extra, 0 changed", err.Error())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2")
	assert.Contains(t, lines[1], "missing")
	assert.Contains(t, lines[2], "gone")
	assert.Contains(t, lines[2], "extra")
}
