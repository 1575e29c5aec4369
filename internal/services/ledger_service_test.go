package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufund/internal/amqp"
	"edufund/internal/core"
	"edufund/internal/store/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerChanged(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func newTestLedger(t *testing.T, pub EventPublisher) (*LedgerService, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := NewLedgerService(st, pub)
	svc.now = func() time.Time { return time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC) }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("%04d", n)
	}
	return svc, st
}

func validDonation() DonationInput {
	return DonationInput{
		DonorType:    core.DonorEnterprise,
		DonorName:    "华夏科技有限公司",
		ContactPhone: "13800138000",
		IDNumber:     "91110000MA01234567",
		Amount:       core.Money{Cents: 50000000},
		Purpose:      "支持山区学校建设",
	}
}

func validFunding() FundingInput {
	return FundingInput{
		InstitutionName: "希望小学",
		Amount:          core.Money{Cents: 15000000},
		Purpose:         "多媒体教室建设",
		PurposeCategory: core.CategoryEquipment,
		Description:     "采购投影与电脑",
		BudgetItems: []core.BudgetItem{
			{Item: "电脑", Amount: core.Money{Cents: 8000000}},
			{Item: "投影仪", Amount: core.Money{Cents: 5000000}},
			{Item: "", Amount: core.Money{Cents: 999}},
			{Item: "安装", Amount: core.Money{Cents: 2000000}},
		},
	}
}

func TestSubmitDonation(t *testing.T) {
	pub := &recordingPublisher{}
	svc, st := newTestLedger(t, pub)

	d, err := svc.SubmitDonation(context.Background(), validDonation())
	require.NoError(t, err)

	assert.Equal(t, "DON-0001", d.ID)
	assert.Equal(t, core.StatusPending, d.Status)
	assert.Equal(t, "2024-09-15", d.ApplicationDate.String())

	stored, err := st.GetDonation(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d, stored)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "donation", pub.msgs[0].Kind)
	assert.Equal(t, d.ID, pub.msgs[0].RecordID)
}

func TestSubmitDonation_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DonationInput)
		want   error
	}{
		{"missing name", func(in *DonationInput) { in.DonorName = " " }, core.ErrRequiredField},
		{"missing id number", func(in *DonationInput) { in.IDNumber = "" }, core.ErrRequiredField},
		{"zero amount", func(in *DonationInput) { in.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"bad donor type", func(in *DonationInput) { in.DonorType = "alien" }, core.ErrInvalidDonorType},
		{"missing phone", func(in *DonationInput) { in.ContactPhone = "  " }, core.ErrRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newTestLedger(t, nil)
			in := validDonation()
			tt.mutate(&in)

			_, err := svc.SubmitDonation(context.Background(), in)
			require.ErrorIs(t, err, tt.want)

			all, _ := st.LoadDonations(context.Background())
			assert.Empty(t, all, "rejected input must not be stored")
		})
	}
}

func TestSubmitFunding(t *testing.T) {
	svc, _ := newTestLedger(t, nil)

	f, err := svc.SubmitFunding(context.Background(), validFunding())
	require.NoError(t, err)

	assert.Equal(t, "FUND-0001", f.ID)
	require.Len(t, f.BudgetItems, 3, "blank budget line should be dropped")
	assert.Equal(t, []string{"1", "2", "3"}, []string{f.BudgetItems[0].ID, f.BudgetItems[1].ID, f.BudgetItems[2].ID})
}

func TestSubmitFunding_BudgetMismatch(t *testing.T) {
	svc, st := newTestLedger(t, nil)
	in := validFunding()
	in.BudgetItems[3].Amount = core.Money{Cents: 1999999}

	_, err := svc.SubmitFunding(context.Background(), in)
	require.ErrorIs(t, err, core.ErrBudgetMismatch)

	all, _ := st.LoadFundings(context.Background())
	assert.Empty(t, all)
}

func TestReviewLifecycleUpdatesFinancials(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestLedger(t, nil)

	d, err := svc.SubmitDonation(ctx, validDonation())
	require.NoError(t, err)

	fs, _ := st.LoadFinancials(ctx)
	assert.Empty(t, fs, "pending donations are not counted")

	require.NoError(t, svc.Approve(ctx, core.KindDonation, d.ID))
	mf, err := svc.Financial(ctx, "2024-09")
	require.NoError(t, err)
	assert.Equal(t, int64(50000000), mf.Income.Cents)
	assert.Equal(t, int64(50000000), mf.Balance.Cents)

	require.NoError(t, svc.Complete(ctx, core.KindDonation, d.ID))
	got, _ := svc.GetDonation(ctx, d.ID)
	assert.Equal(t, core.StatusCompleted, got.Status)

	err = svc.Approve(ctx, core.KindDonation, d.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestReviewFunding(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, nil)

	f, err := svc.SubmitFunding(ctx, validFunding())
	require.NoError(t, err)

	err = svc.Complete(ctx, core.KindFunding, f.ID)
	require.ErrorIs(t, err, core.ErrInvalidTransition, "pending funding cannot complete")

	require.NoError(t, svc.Approve(ctx, core.KindFunding, f.ID))
	got, _ := svc.GetFunding(ctx, f.ID)
	require.NotNil(t, got.ApprovalDate)
	assert.Equal(t, "2024-09-15", got.ApprovalDate.String())

	mf, err := svc.Financial(ctx, "2024-09")
	require.NoError(t, err)
	assert.Equal(t, int64(-15000000), mf.Balance.Cents)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, nil)
	d, _ := svc.SubmitDonation(ctx, validDonation())

	err := svc.Reject(ctx, core.KindDonation, d.ID, "  ")
	require.ErrorIs(t, err, core.ErrOpinionRequired)

	require.NoError(t, svc.Reject(ctx, core.KindDonation, d.ID, "资料不全"))
	got, _ := svc.GetDonation(ctx, d.ID)
	assert.Equal(t, core.StatusRejected, got.Status)
	assert.Equal(t, "资料不全", got.ReviewOpinion)

	_, err = svc.Financial(ctx, "2024-09")
	assert.ErrorIs(t, err, core.ErrMonthNotFound)
}

func TestReviewUnknownRecord(t *testing.T) {
	svc, _ := newTestLedger(t, nil)

	err := svc.Approve(context.Background(), core.KindFunding, "FUND-missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = svc.Approve(context.Background(), core.RecordKind("student"), "x")
	assert.ErrorIs(t, err, core.ErrInvalidKind)
}

func TestDeleteRecomputes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, nil)
	d, _ := svc.SubmitDonation(ctx, validDonation())
	require.NoError(t, svc.Approve(ctx, core.KindDonation, d.ID))

	require.NoError(t, svc.Delete(ctx, core.KindDonation, d.ID))

	fs, err := svc.Financials(ctx)
	require.NoError(t, err)
	assert.Empty(t, fs)
	assert.ErrorIs(t, svc.Delete(ctx, core.KindDonation, d.ID), core.ErrNotFound)
}

func TestPublishFailureKeepsMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, st := newTestLedger(t, pub)

	d, err := svc.SubmitDonation(context.Background(), validDonation())
	require.NoError(t, err)

	_, err = st.GetDonation(context.Background(), d.ID)
	assert.NoError(t, err)
	assert.Len(t, pub.msgs, 1)
}

func TestOnChangeListeners(t *testing.T) {
	svc, _ := newTestLedger(t, nil)
	calls := 0
	svc.OnChange(func() { calls++ })

	_, err := svc.SubmitDonation(context.Background(), validDonation())
	require.NoError(t, err)
	_, err = svc.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestLedger(t, nil)
	require.NoError(t, st.SaveDonations(ctx, []core.Donation{
		{ID: "DON-A", DonorName: "张伟", Purpose: "奖学金", Status: core.StatusPending, ApplicationDate: core.NewDate(2024, 9, 1)},
		{ID: "DON-B", DonorName: "Acme Ltd", Purpose: "图书", Status: core.StatusApproved, ApplicationDate: core.NewDate(2024, 10, 1)},
		{ID: "DON-C", DonorName: "李娜", Purpose: "图书角", Status: core.StatusPending, ApplicationDate: core.NewDate(2024, 11, 1)},
	}))

	all, err := svc.ListDonations(ctx, core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"DON-C", "DON-B", "DON-A"}, ids(all))

	books, _ := svc.ListDonations(ctx, core.Filter{Keyword: "图书"})
	assert.Equal(t, []string{"DON-C", "DON-B"}, ids(books))

	acme, _ := svc.ListDonations(ctx, core.Filter{Keyword: "acme"})
	assert.Equal(t, []string{"DON-B"}, ids(acme))

	pending, _ := svc.ListDonations(ctx, core.Filter{Status: core.StatusPending})
	assert.Equal(t, []string{"DON-C", "DON-A"}, ids(pending))
}

func ids(ds []core.Donation) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestFinancialInvalidMonth(t *testing.T) {
	svc, _ := newTestLedger(t, nil)

	_, err := svc.Financial(context.Background(), "2024-13")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, nil)

	d, _ := svc.SubmitDonation(ctx, validDonation())
	require.NoError(t, svc.Approve(ctx, core.KindDonation, d.ID))
	_, err := svc.SubmitFunding(ctx, validFunding())
	require.NoError(t, err)

	db, err := svc.Dashboard(ctx, svc.Now())
	require.NoError(t, err)

	assert.Equal(t, "2024-09", db.Month)
	assert.Equal(t, int64(50000000), db.MonthIncome.Cents)
	assert.Equal(t, int64(0), db.MonthExpense.Cents)
	assert.Equal(t, int64(50000000), db.Balance.Cents)
	assert.Equal(t, 1, db.PendingReviews)
	assert.Equal(t, 1, db.DonationsByState[core.StatusApproved])
}

func TestSubmitDonation_AcceptsLandline(t *testing.T) {
	svc, _ := newTestLedger(t, nil)
	in := validDonation()
	in.ContactPhone = "010-62345678"

	d, err := svc.SubmitDonation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "010-62345678", d.ContactPhone)
}

func TestSubmitFunding_RejectsWrappedBudget(t *testing.T) {
	svc, st := newTestLedger(t, nil)
	const max = int64(1<<63 - 1)
	in := validFunding()
	in.Amount = core.Money{Cents: 100}
	in.BudgetItems = []core.BudgetItem{
		{Item: "a", Amount: core.Money{Cents: max}},
		{Item: "b", Amount: core.Money{Cents: max}},
		{Item: "c", Amount: core.Money{Cents: 102}},
	}

	_, err := svc.SubmitFunding(context.Background(), in)
	require.ErrorIs(t, err, core.ErrBudgetMismatch)
	all, _ := st.LoadFundings(context.Background())
	assert.Empty(t, all)
}

// flakyFinancials fails ReplaceFinancials while broken is set.
type flakyFinancials struct {
	*memory.Store
	broken bool
}

func (f *flakyFinancials) ReplaceFinancials(ctx context.Context, fs []core.MonthlyFinancial) error {
	if f.broken {
		return errors.New("disk full")
	}
	return f.Store.ReplaceFinancials(ctx, fs)
}

func newFlakyLedger(t *testing.T) (*LedgerService, *flakyFinancials) {
	t.Helper()
	_, mem := newTestLedger(t, nil)
	st := &flakyFinancials{Store: mem}
	svc := NewLedgerService(st, nil)
	svc.now = func() time.Time { return time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC) }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("%04d", n)
	}
	return svc, st
}

func TestFailedRecomputeLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	svc, st := newFlakyLedger(t)
	st.broken = true

	_, err := svc.SubmitDonation(ctx, validDonation())
	require.ErrorContains(t, err, "disk full")
	_, err = svc.SubmitFunding(ctx, validFunding())
	require.ErrorContains(t, err, "disk full")

	donations, _ := st.LoadDonations(ctx)
	fundings, _ := st.LoadFundings(ctx)
	assert.Empty(t, donations)
	assert.Empty(t, fundings)
}

func TestFailedRecomputeRestoresReviewedAndDeletedRecords(t *testing.T) {
	ctx := context.Background()
	svc, st := newFlakyLedger(t)

	d, err := svc.SubmitDonation(ctx, validDonation())
	require.NoError(t, err)
	f, err := svc.SubmitFunding(ctx, validFunding())
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, core.KindDonation, d.ID))
	before, err := st.LoadFinancials(ctx)
	require.NoError(t, err)

	st.broken = true
	require.Error(t, svc.Complete(ctx, core.KindDonation, d.ID))
	require.Error(t, svc.Approve(ctx, core.KindFunding, f.ID))
	require.Error(t, svc.Delete(ctx, core.KindDonation, d.ID))

	gotD, err := st.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, gotD.Status)

	gotF, err := st.GetFunding(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, gotF.Status)
	assert.Nil(t, gotF.ApprovalDate)

	after, err := st.LoadFinancials(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	st.broken = false
	require.NoError(t, svc.Complete(ctx, core.KindDonation, d.ID))
}
