package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"edufund/internal/core"
	ports "edufund/internal/sheets"
)

type fakeSheets struct {
	mu      sync.Mutex
	cleared int
	updates []gsheet.ValueRange
	query   string
	values  [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.cleared++
		_ = json.NewEncoder(w).Encode(gsheet.ClearValuesResponse{})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates = append(f.updates, vr)
		f.query = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.values})
	default:
		http.Error(w, "unexpected "+r.Method, http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(), "sheet-id", "月度财务",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 11, 1, 8, 30, 0, 0, time.UTC) }
	return c
}

func sampleFinancials() []core.MonthlyFinancial {
	return []core.MonthlyFinancial{
		{
			Month:         "2024-09",
			Income:        core.Money{Cents: 50000000},
			Balance:       core.Money{Cents: 50000000},
			IncomeDetails: []core.LineItem{{ID: "DON-1"}},
		},
		{
			Month:          "2024-10",
			Expense:        core.Money{Cents: 15000000},
			Balance:        core.Money{Cents: 35000000},
			ExpenseDetails: []core.LineItem{{ID: "FUND-1"}},
		},
	}
}

func TestNew_MissingSettings(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, "id", "sheet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account")

	_, err = NewWithOptions(ctx, "  ", "sheet")
	require.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")

	_, err = NewWithOptions(ctx, "id", "")
	require.EqualError(t, err, "missing GOOGLE_SHEET_NAME")
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	err := c.WriteFinancials(context.Background(), nil)
	require.Error(t, err)
	_, err = c.ReadFinancials(context.Background())
	require.Error(t, err)
}

func TestWriteFinancials(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	require.NoError(t, c.WriteFinancials(context.Background(), sampleFinancials()))

	assert.Equal(t, 1, fake.cleared)
	require.Len(t, fake.updates, 1)
	assert.Contains(t, fake.query, "valueInputOption=USER_ENTERED")

	rows := fake.updates[0].Values
	require.Len(t, rows, 3)
	assert.Equal(t, "月份", rows[0][0])
	assert.Equal(t, []any{"2024-09", "500000.00", "0.00", "500000.00", "500000.00", float64(1), float64(0), "2024-11-01 08:30:00"}, rows[1])
	assert.Equal(t, "-150000.00", rows[2][3])
	assert.Equal(t, "350000.00", rows[2][4])
}

func TestReadFinancials(t *testing.T) {
	fake := &fakeSheets{values: [][]any{
		{"月份", "收入（元）", "支出（元）", "本月结余（元）", "月末余额（元）", "收入笔数", "支出笔数"},
		{"2024-09", "¥500,000.00", "0", "500000", "500000", "1", "0"},
		{"2024-10", "0.00", "150000.00", "-150000.00", "350000.00", "0", "1"},
		{"total", "1", "1", "1", "1", "1", "1"},
		{"2024-11", "oops", "0", "0", "0", "0", "0"},
	}}
	c := newTestClient(t, fake)

	rows, err := c.ReadFinancials(context.Background())
	require.NoError(t, err)

	want := []ports.MonthRow{
		ports.RowOf(sampleFinancials()[0]),
		ports.RowOf(sampleFinancials()[1]),
	}
	assert.Equal(t, want, rows)
}

func TestParseYuanToCents(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"1500", 150000, true},
		{"¥1,500.50", 150050, true},
		{"-850.00", -85000, true},
		{"0.005", 1, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cents, ok := parseYuanToCents(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cents, cents)
		})
	}
}
