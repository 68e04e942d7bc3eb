// Package http serves the JSON API used by the Telegram mini app.
//
// This file decodes request bodies and query parameters into domain values.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const maxBodyBytes = 64 << 10

// ErrMalformedBody means the body is not a JSON draft at all. Drafts that
// parse but fail validation are reported separately.
var ErrMalformedBody = errors.New("malformed request body")

// draftRequest is the POST /api/transactions body. Amount may be a number or
// a string such as "1 200,50".
type draftRequest struct {
	Type     string          `json:"type"`
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Note     string          `json:"note"`
}

// ParseDraft reads a draft from r. Only malformed JSON, an oversized body or
// an unreadable date produce an error; missing or invalid amounts become a
// draft that fails validation.
func ParseDraft(r *http.Request) (core.Draft, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return core.Draft{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}
	if len(body) > maxBodyBytes {
		return core.Draft{}, fmt.Errorf("%w: body too large", ErrMalformedBody)
	}

	var req draftRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return core.Draft{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return core.Draft{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	return core.Draft{
		Amount:   parseAmount(req.Amount),
		Type:     core.TxType(strings.ToLower(strings.TrimSpace(req.Type))),
		Category: sanitizeInput(req.Category),
		Date:     date,
		Note:     sanitizeInput(req.Note),
	}, nil
}

// parseAmount returns nil when the amount is absent or unreadable, which
// validation reports as a missing amount. Negative numbers are kept so
// validation can reject them.
func parseAmount(raw json.RawMessage) *decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		d, err := core.ParseAmount(s)
		if err != nil {
			return nil
		}
		return &d
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil
	}
	return &d
}

// parseDate accepts "" (today), a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// ParseGranularity reads ?period=, defaulting to month.
func ParseGranularity(r *http.Request) core.Granularity {
	return core.ParseGranularity(r.URL.Query().Get("period"))
}
