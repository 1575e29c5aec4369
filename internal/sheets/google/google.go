package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"edufund/internal/core"
	ports "edufund/internal/sheets"
)

// Header is the first row of the summary sheet.
var Header = []any{"月份", "收入（元）", "支出（元）", "本月结余（元）", "月末余额（元）", "收入笔数", "支出笔数", "更新时间"}

const lastColumn = "H"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
}

// Ensure interface conformance
var _ ports.FinancialMirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account key.
func New(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte) (*Client, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	return NewWithOptions(ctx, spreadsheetID, sheetName,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds a client from raw API options, e.g. a custom endpoint.
func NewWithOptions(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("missing GOOGLE_SHEET_NAME")
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}, nil
}

// WriteFinancials clears the summary sheet and writes one row per month.
func (c *Client) WriteFinancials(ctx context.Context, fs []core.MonthlyFinancial) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := buildRows(fs, c.now())
	dataRange := fmt.Sprintf("%s!A1:%s%d", c.sheetName, lastColumn, len(values))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Wrote monthly financials to sheet",
		"sheet", c.sheetName,
		"months", len(fs))
	return nil
}

// ReadFinancials parses the summary sheet back into rows, skipping the header
// and any row whose month or amounts cannot be read.
func (c *Client) ReadFinancials(ctx context.Context) ([]ports.MonthRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values), nil
}

func buildRows(fs []core.MonthlyFinancial, updatedAt time.Time) [][]any {
	stamp := updatedAt.Format("2006-01-02 15:04:05")
	values := make([][]any, 0, len(fs)+1)
	values = append(values, Header)
	for _, mf := range fs {
		r := ports.RowOf(mf)
		values = append(values, []any{
			r.Month,
			r.Income.String(),
			r.Expense.String(),
			r.Net.String(),
			r.Balance.String(),
			r.IncomeCount,
			r.ExpenseCount,
			stamp,
		})
	}
	return values
}

func parseRows(values [][]any) []ports.MonthRow {
	out := make([]ports.MonthRow, 0, len(values))
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 7 || !isMonthKey(cols[0]) {
			continue
		}
		var (
			row ports.MonthRow
			ok  = true
		)
		row.Month = cols[0]
		for i, dst := range []*core.Money{&row.Income, &row.Expense, &row.Net, &row.Balance} {
			cents, parsed := parseYuanToCents(cols[i+1])
			ok = ok && parsed
			dst.Cents = cents
		}
		inc, err1 := strconv.Atoi(cols[5])
		exp, err2 := strconv.Atoi(cols[6])
		if !ok || err1 != nil || err2 != nil {
			continue
		}
		row.IncomeCount, row.ExpenseCount = inc, exp
		out = append(out, row)
	}
	return out
}

func isMonthKey(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// parseYuanToCents reads a formatted sheet amount such as "¥1,500.00" or "-850".
func parseYuanToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Shift(2).Round(0).IntPart(), true
}
