package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.Exporter          = (*Client)(nil)
	_ ports.TransactionLister = (*Client)(nil)
)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// Client mirrors ledger rows into one sheet, keyed by transaction id in
// column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger

	// sheetID is the numeric tab id needed by structural updates.
	mu       sync.Mutex
	sheetID  int64
	resolved bool
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet", cfg.SpreadsheetID, "sheet", sheetName(cfg))
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName(cfg),
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

func sheetName(cfg Config) string {
	if name := strings.TrimSpace(cfg.SheetName); name != "" {
		return name
	}
	return "Transactions"
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// AppendTransaction appends [id, date, type, amount, category, note] and
// returns the updated range.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{rowFor(tx)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Transaction row appended",
		applog.FieldTransactionID, tx.ID,
		"range", ref)
	return ref, nil
}

// DeleteTransaction removes the first row whose column A equals id.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, id)
	if row < 0 {
		c.logger.InfoContext(ctx, "No row to delete", applog.FieldTransactionID, id)
		return nil
	}

	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
					// Tab 0 and row 0 are valid and must not be dropped as empty.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row+1, c.sheetName, err)
	}

	c.logger.InfoContext(ctx, "Transaction row deleted",
		applog.FieldTransactionID, id,
		"row", row+1)
	return nil
}

// ListTransactions reads back every parseable row. Header and malformed rows
// are skipped.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]core.Transaction, 0, len(resp.Values))
	for _, row := range resp.Values {
		tx, ok := parseRow(toStrings(row))
		if !ok {
			continue
		}
		out = append(out, tx)
	}
	c.logger.DebugContext(ctx, "Transaction rows read",
		applog.FieldOperation, applog.OpList,
		applog.FieldCount, len(out),
		"rows", len(resp.Values))
	return out, nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	id, ok := sheetIDByTitle(ss.Sheets, c.sheetName)
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", c.sheetName)
	}
	c.sheetID, c.resolved = id, true
	return id, nil
}

func rowFor(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.UTC().Format(ports.RowDateLayout),
		string(tx.Type),
		tx.Amount.String(),
		tx.Category,
		tx.Note,
	}
}

func parseRow(cols []string) (core.Transaction, bool) {
	if len(cols) < 5 || cols[0] == "" {
		return core.Transaction{}, false
	}
	date, err := time.Parse(ports.RowDateLayout, cols[1])
	if err != nil {
		return core.Transaction{}, false
	}
	typ, err := core.ParseTxType(cols[2])
	if err != nil {
		return core.Transaction{}, false
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(cols[3], ",", "."))
	if err != nil || amount.IsNegative() {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		ID:       cols[0],
		Date:     date,
		Type:     typ,
		Amount:   amount,
		Category: cols[4],
	}
	if len(cols) > 5 {
		tx.Note = cols[5]
	}
	return tx, true
}

// findRow returns the zero-based index of the row whose first cell is id.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

func sheetIDByTitle(sheets []*gsheet.Sheet, title string) (int64, bool) {
	for _, s := range sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s.Properties.Title), strings.TrimSpace(title)) {
			return s.Properties.SheetId, true
		}
	}
	return 0, false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
