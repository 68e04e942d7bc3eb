// Package http serves the JSON API used by the Telegram mini app.
//
// This file holds the fluent builder every handler writes its response
// through, so status codes, content types and error bodies stay uniform.

package http

import (
	"encoding/json"
	"net/http"

	"fintrack/internal/core"
)

// JSONResponseBuilder accumulates status, headers and body for one response.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	raw        []byte
}

// NewJSONResponse starts a 200 response.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.body = v
	b.raw = nil
	return b
}

// Bytes sets a pre-encoded body with its content type.
func (b *JSONResponseBuilder) Bytes(contentType string, data []byte) *JSONResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.raw = data
	b.body = nil
	return b
}

// Write sends the response. Encoding failures after the header is written
// can only be dropped.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		if len(b.raw) > 0 {
			_, _ = w.Write(b.raw)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse builds {"error": message} with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// NotCreated is the silent validation failure: no message, only the flag.
func NotCreated() *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(map[string]bool{"created": false})
}

func NoContent() *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNoContent)
}

// PNG serves a rendered chart. A nil image means there is nothing to draw.
func PNG(img []byte) *JSONResponseBuilder {
	if img == nil {
		return NoContent()
	}
	return NewJSONResponse().Bytes("image/png", img)
}

// Wire shapes. Amounts are JSON numbers.

const dateLayout = "2006-01-02T15:04:05.000Z07:00"

type transactionJSON struct {
	ID       string      `json:"id"`
	Amount   json.Number `json:"amount"`
	Type     string      `json:"type"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
	Note     string      `json:"note"`
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:       tx.ID,
		Amount:   json.Number(tx.Amount.String()),
		Type:     tx.Type.String(),
		Category: tx.Category,
		Date:     tx.Date.UTC().Format(dateLayout),
		Note:     tx.Note,
	}
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionJSON(tx))
	}
	return out
}

type summaryJSON struct {
	TotalIncome  json.Number `json:"totalIncome"`
	TotalExpense json.Number `json:"totalExpense"`
	Balance      json.Number `json:"balance"`
}

func toSummaryJSON(s core.FinancialSummary) summaryJSON {
	return summaryJSON{
		TotalIncome:  json.Number(s.TotalIncome.String()),
		TotalExpense: json.Number(s.TotalExpense.String()),
		Balance:      json.Number(s.Balance.String()),
	}
}

type categoryJSON struct {
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
}

type timelineJSON struct {
	Key     string      `json:"key"`
	Income  json.Number `json:"income"`
	Expense json.Number `json:"expense"`
}

func toCategoriesJSON(buckets []core.CategoryBucket) []categoryJSON {
	out := make([]categoryJSON, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, categoryJSON{Name: b.Name, Value: json.Number(b.Value.String())})
	}
	return out
}

func toTimelineJSON(buckets []core.TimelineBucket) []timelineJSON {
	out := make([]timelineJSON, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, timelineJSON{
			Key:     b.Key,
			Income:  json.Number(b.Income.String()),
			Expense: json.Number(b.Expense.String()),
		})
	}
	return out
}

