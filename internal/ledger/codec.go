package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// isoMillis matches what browsers produce for Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// ErrCorrupt is returned when the stored blob is not a JSON array.
var ErrCorrupt = errors.New("ledger data corrupt")

// record is the persisted shape of a transaction.
type record struct {
	ID       string      `json:"id"`
	Amount   json.Number `json:"amount"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
	Note     string      `json:"note"`
	Type     core.TxType `json:"type"`
}

// Encode serializes txs as the persisted JSON array.
func Encode(txs []core.Transaction) ([]byte, error) {
	records := make([]record, len(txs))
	for i, tx := range txs {
		records[i] = record{
			ID:       tx.ID,
			Amount:   json.Number(tx.Amount.String()),
			Category: tx.Category,
			Date:     tx.Date.UTC().Format(isoMillis),
			Note:     tx.Note,
			Type:     tx.Type,
		}
	}
	return json.Marshal(records)
}

// Rejected describes one stored element that failed shape validation.
type Rejected struct {
	Index  int
	Reason string
}

// Decode parses the persisted array. Elements that do not match the
// transaction shape are skipped and reported; missing category or note
// default to "". Later duplicates of an id are dropped.
func Decode(data []byte) ([]core.Transaction, []Rejected, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, ErrCorrupt
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	txs := make([]core.Transaction, 0, len(elems))
	var rejected []Rejected
	seen := make(map[string]bool, len(elems))
	for i, raw := range elems {
		tx, err := decodeOne(raw)
		if err == nil && seen[tx.ID] {
			err = fmt.Errorf("duplicate id %q", tx.ID)
		}
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		seen[tx.ID] = true
		txs = append(txs, tx)
	}
	return txs, rejected, nil
}

func decodeOne(raw json.RawMessage) (core.Transaction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return core.Transaction{}, errors.New("not an object")
	}

	id, err := stringField(fields, "id", true)
	if err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(id) == "" {
		return core.Transaction{}, errors.New("empty id")
	}

	amount, err := amountField(fields["amount"])
	if err != nil {
		return core.Transaction{}, err
	}

	typ, err := stringField(fields, "type", true)
	if err != nil {
		return core.Transaction{}, err
	}
	if !core.TxType(typ).Valid() {
		return core.Transaction{}, fmt.Errorf("invalid type %q", typ)
	}

	dateStr, err := stringField(fields, "date", true)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return core.Transaction{}, err
	}

	category, err := stringField(fields, "category", false)
	if err != nil {
		return core.Transaction{}, err
	}
	note, err := stringField(fields, "note", false)
	if err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		ID:       id,
		Amount:   amount,
		Type:     core.TxType(typ),
		Category: category,
		Date:     date,
		Note:     note,
	}, nil
}

// stringField reads a string member. Optional members that are missing or
// null yield "".
func stringField(fields map[string]json.RawMessage, name string, required bool) (string, error) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		if required {
			return "", fmt.Errorf("missing %s", name)
		}
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		if required {
			return "", fmt.Errorf("%s is not a string", name)
		}
		return "", nil
	}
	return s, nil
}

// amountField accepts a JSON number or a numeric string and rejects negatives.
func amountField(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, errors.New("missing amount")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, errors.New("amount is not a number")
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, errors.New("amount is not a number")
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("negative amount")
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
