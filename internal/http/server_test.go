package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufund/internal/core"
	"edufund/internal/services"
	"edufund/internal/store/memory"
)

type testAPI struct {
	t      *testing.T
	srv    *Server
	ledger *services.LedgerService
}

func newTestAPI(t *testing.T, ready func(context.Context) error) *testAPI {
	t.Helper()
	st := memory.New()
	ledger := services.NewLedgerService(st, nil)
	srv := NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, Dependencies{
		Ledger:      ledger,
		Accounts:    services.NewAccountService(st),
		Calibration: services.NewCalibrationService(st),
		Ready:       ready,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return &testAPI{t: t, srv: srv, ledger: ledger}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[errorBody](t, rec).Error.Code
}

const donationBody = `{
	"donorType": "enterprise",
	"donorName": "华夏科技有限公司",
	"contactPhone": "13800138000",
	"idNumber": "91110000MA01234567",
	"amount": "500000",
	"purpose": "支持山区学校建设"
}`

const fundingBody = `{
	"institutionName": "希望小学",
	"amount": 150000,
	"purpose": "多媒体教室建设",
	"purposeCategory": "设备采购",
	"description": "采购投影仪与电脑",
	"budgetDetails": [
		{"item": "投影仪", "amount": "100000"},
		{"item": "电脑", "amount": "50000"},
		{"item": "", "amount": "0"}
	]
}`

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, nil)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/readyz", "").Code)

	down := newTestAPI(t, func(context.Context) error { return errors.New("db gone") })
	rec := down.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", errorCode(t, rec))
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(http.MethodGet, "/healthz", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestDonationLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/donations", donationBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[core.Donation](t, rec)
	assert.True(t, strings.HasPrefix(d.ID, "DON-"))
	assert.Equal(t, core.StatusPending, d.Status)
	assert.Equal(t, int64(50000000), d.Amount.Cents)

	rec = api.do(http.MethodGet, "/api/donations?status=pending&q=%E5%8D%8E%E5%A4%8F", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse[core.Donation]](t, rec)
	assert.Equal(t, 1, list.Total)

	rec = api.do(http.MethodPost, "/api/donations/"+d.ID+"/complete", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, rec))

	rec = api.do(http.MethodPost, "/api/donations/"+d.ID+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.StatusApproved, decode[core.Donation](t, rec).Status)

	rec = api.do(http.MethodPost, "/api/donations/"+d.ID+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusCompleted, decode[core.Donation](t, rec).Status)

	rec = api.do(http.MethodGet, "/api/financials", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fs := decode[listResponse[core.MonthlyFinancial]](t, rec)
	require.Equal(t, 1, fs.Total)
	assert.Equal(t, int64(50000000), fs.Items[0].Balance.Cents)

	rec = api.do(http.MethodDelete, "/api/donations/"+d.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/financials", "")
	assert.Equal(t, 0, decode[listResponse[core.MonthlyFinancial]](t, rec).Total, "cache purged after delete")

	rec = api.do(http.MethodGet, "/api/donations/"+d.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/donations", `{"donorType":"enterprise","amount":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/donations", `{"donorType":"enterprise","donorName":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "required_field", errorCode(t, rec))

	body := strings.Replace(fundingBody, `"amount": 150000`, `"amount": 150000.01`, 1)
	rec = api.do(http.MethodPost, "/api/fundings", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "budget_mismatch", errorCode(t, rec))

	rec = api.do(http.MethodGet, "/api/fundings?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFundingRejectNeedsOpinion(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/fundings", fundingBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	f := decode[core.Funding](t, rec)
	require.Len(t, f.BudgetItems, 2)

	rec = api.do(http.MethodPost, "/api/fundings/"+f.ID+"/reject", `{"opinion": "  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "opinion_required", errorCode(t, rec))

	rec = api.do(http.MethodPost, "/api/fundings/"+f.ID+"/reject", `{"opinion": "预算不明确"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[core.Funding](t, rec)
	assert.Equal(t, core.StatusRejected, got.Status)
	assert.Equal(t, "预算不明确", got.ReviewOpinion)

	rec = api.do(http.MethodPost, "/api/fundings/"+f.ID+"/archive", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportAndDashboard(t *testing.T) {
	api := newTestAPI(t, nil)
	month := api.ledger.Now().Format("2006-01")

	rec := api.do(http.MethodPost, "/api/fundings", fundingBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[core.Funding](t, rec).ID
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/fundings/"+id+"/approve", "").Code)

	rec = api.do(http.MethodGet, "/api/financials/"+month, "")
	require.Equal(t, http.StatusOK, rec.Code)
	mf := decode[core.MonthlyFinancial](t, rec)
	assert.Equal(t, int64(-15000000), mf.Balance.Cents)

	rec = api.do(http.MethodGet, "/api/financials/"+month+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")
	assert.Contains(t, rec.Body.String(), "希望小学的用款")

	rec = api.do(http.MethodGet, "/api/financials/"+month+"/export?format=txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "【支出明细】")

	rec = api.do(http.MethodGet, "/api/financials/"+month+"/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/financials/1999-01", "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/financials/2024-13", "").Code)

	rec = api.do(http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[core.Dashboard](t, rec)
	assert.Equal(t, month, dash.Month)
	assert.Equal(t, int64(15000000), dash.MonthExpense.Cents)
	assert.Equal(t, 1, dash.FundingsByState[core.StatusApproved])

	rec = api.do(http.MethodPost, "/api/financials/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResponse[core.MonthlyFinancial]](t, rec).Total)
}

func TestAccounts(t *testing.T) {
	api := newTestAPI(t, nil)
	reg := `{"username":"admin","password":"123456","confirmPassword":"123456","phone":"13800138000"}`

	rec := api.do(http.MethodPost, "/api/auth/register", reg)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "123456")

	rec = api.do(http.MethodPost, "/api/auth/register", reg)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/reset", `{"username":"admin","phone":"13900000000","newPassword":"abcdef"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "identity_mismatch", errorCode(t, rec))

	rec = api.do(http.MethodPost, "/api/auth/reset", `{"username":"admin","phone":"13800138000","newPassword":"abcdef","confirmPassword":"abcdef"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"abcdef"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode[core.User](t, rec).Username)
}

func TestDetections(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/detections/new", "")
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode[core.Detection](t, rec)
	require.Len(t, draft.Experiment, 4)

	draft.Device.ProductCode = "PT-001"
	body, err := json.Marshal(draft)
	require.NoError(t, err)

	rec = api.do(http.MethodPost, "/api/detections", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[core.Detection](t, rec)
	require.NotEmpty(t, saved.ID)

	rec = api.do(http.MethodGet, "/api/detections/"+saved.ID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "产品编号：PT-001")

	rec = api.do(http.MethodGet, "/api/detections", "")
	assert.Equal(t, 1, decode[listResponse[core.Detection]](t, rec).Total)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/detections/"+saved.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/detections/"+saved.ID, "").Code)
}

func TestRateLimitOnMutations(t *testing.T) {
	st := memory.New()
	srv := NewServer(Config{RateLimitPerMinute: 1, CacheTTL: time.Minute}, Dependencies{
		Ledger:      services.NewLedgerService(st, nil),
		Accounts:    services.NewAccountService(st),
		Calibration: services.NewCalibrationService(st),
	})
	t.Cleanup(func() { _ = srv.Close() })
	api := &testAPI{t: t, srv: srv}

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/donations", "{").Code)
	rec := api.do(http.MethodPost, "/api/donations", "{")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/donations", "").Code, "reads are not limited")
}
