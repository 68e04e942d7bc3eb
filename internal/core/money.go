// Package core provides money parsing and formatting utilities.
//
// Amounts are carried as shopspring decimals. Display goes through go-money,
// which works in minor units of the configured currency.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency every amount in the ledger is assumed to be in.
const DefaultCurrency = money.RUB

// ErrInvalidAmount is returned by ParseAmount for unparseable input.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts user input to a decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, ignores
// spaces used as thousands separators and rejects signs. Zero is allowed;
// negative values never parse.
//
// Examples:
//
//	ParseAmount("1200")      -> 1200
//	ParseAmount("12,5")      -> 12.5
//	ParseAmount("85 000.00") -> 85000
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if r < '0' || r > '9' {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		if len(parts) == 1 || parts[1] == "" {
			return decimal.Zero, ErrInvalidAmount
		}
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount in the given ISO currency, e.g. "1 200,00 ₽".
// An unknown currency code falls back to DefaultCurrency.
func FormatAmount(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		cur = money.GetCurrency(DefaultCurrency)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// FormatSigned prefixes the formatted amount with + for income and - for expense.
func FormatSigned(tx Transaction, currency string) string {
	sign := "-"
	if tx.Type == Income {
		sign = "+"
	}
	return sign + FormatAmount(tx.Amount, currency)
}
