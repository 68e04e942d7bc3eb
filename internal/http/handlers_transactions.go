package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/host"
	applog "fintrack/internal/log"
)

const dashboardRecent = 5

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := core.SortByDateDesc(s.txs.List())
	NewJSONResponse().JSON(toTransactionsJSON(txs)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	draft, err := ParseDraft(r)
	if err != nil {
		logger.WarnContext(ctx, "Malformed transaction body",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpParse)
		BadRequestError("malformed request body").Write(w)
		return
	}

	tx, err := s.txs.Create(ctx, draft)
	switch {
	case errors.Is(err, core.ErrValidation):
		logger.DebugContext(ctx, "Draft rejected", applog.FieldError, err)
		NotCreated().Write(w)
		return
	case err != nil:
		logger.ErrorContext(ctx, "Failed to create transaction",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpCreate)
		InternalServerError().Write(w)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		JSON(toTransactionJSON(tx)).
		Write(w)
}

// handleDeleteTransaction answers 204 whether or not the id existed.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, err := s.txs.Delete(ctx, id); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to delete transaction",
			applog.FieldError, err,
			applog.FieldTransactionID, id,
			applog.FieldOperation, applog.OpDelete)
		InternalServerError().Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(toSummaryJSON(core.Summarize(s.txs.List()))).Write(w)
}

type dashboardJSON struct {
	Greeting string            `json:"greeting,omitempty"`
	Summary  summaryJSON       `json:"summary"`
	Display  displayJSON       `json:"display"`
	Recent   []transactionJSON `json:"recent"`
}

// displayJSON carries the summary pre-formatted in the configured currency.
type displayJSON struct {
	TotalIncome  string `json:"totalIncome"`
	TotalExpense string `json:"totalExpense"`
	Balance      string `json:"balance"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	txs := s.txs.List()
	sum := core.Summarize(txs)
	NewJSONResponse().JSON(dashboardJSON{
		Greeting: host.GreetingName(host.FromContext(r.Context())),
		Summary:  toSummaryJSON(sum),
		Display: displayJSON{
			TotalIncome:  core.FormatAmount(sum.TotalIncome, s.currency),
			TotalExpense: core.FormatAmount(sum.TotalExpense, s.currency),
			Balance:      core.FormatAmount(sum.Balance, s.currency),
		},
		Recent: toTransactionsJSON(core.Recent(txs, dashboardRecent)),
	}).Write(w)
}
