package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"edufund/internal/amqp"
	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/ports"
)

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerStore is the persistence a LedgerService needs.
type LedgerStore interface {
	ports.DonationStore
	ports.FundingStore
	ports.FinancialStore
}

type DonationInput struct {
	DonorType    core.DonorType `json:"donorType"`
	DonorName    string         `json:"donorName"`
	ContactPhone string         `json:"contactPhone"`
	IDNumber     string         `json:"idNumber"`
	Amount       core.Money     `json:"amount"`
	Purpose      string         `json:"purpose"`
	Notes        string         `json:"notes"`
	Certificate  string         `json:"certificate"`
}

type FundingInput struct {
	InstitutionName string               `json:"institutionName"`
	Amount          core.Money           `json:"amount"`
	Purpose         string               `json:"purpose"`
	PurposeCategory core.PurposeCategory `json:"purposeCategory"`
	Description     string               `json:"description"`
	BudgetItems     []core.BudgetItem    `json:"budgetDetails"`
}

// LedgerService owns the donation and funding lifecycles and keeps the
// monthly financials in step with them.
type LedgerService struct {
	store     LedgerStore
	publisher EventPublisher

	now   func() time.Time
	newID func() string

	// mu serializes each mutation with its recomputation.
	mu        sync.Mutex
	listeners []func()
}

// NewLedgerService wires the service. publisher may be nil.
func NewLedgerService(store LedgerStore, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// OnChange registers fn to run after every successful recomputation.
func (s *LedgerService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SubmitDonation stores a new pending donation dated today.
func (s *LedgerService) SubmitDonation(ctx context.Context, in DonationInput) (core.Donation, error) {
	d := core.Donation{
		ID:              core.KindDonation.IDPrefix() + "-" + s.newID(),
		DonorType:       in.DonorType,
		DonorName:       strings.TrimSpace(in.DonorName),
		ContactPhone:    strings.TrimSpace(in.ContactPhone),
		IDNumber:        strings.TrimSpace(in.IDNumber),
		Amount:          in.Amount,
		Purpose:         strings.TrimSpace(in.Purpose),
		Notes:           strings.TrimSpace(in.Notes),
		Certificate:     strings.TrimSpace(in.Certificate),
		Status:          core.StatusPending,
		ApplicationDate: core.DateOf(s.now()),
	}
	if err := d.Validate(); err != nil {
		return core.Donation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.commit(ctx, core.KindDonation, d.ID, log.OpCreate,
		func() error {
			if err := s.store.UpsertDonation(ctx, d); err != nil {
				return fmt.Errorf("save donation: %w", err)
			}
			return nil
		},
		func(ctx context.Context) error { return s.store.DeleteDonation(ctx, d.ID) })
	if err != nil {
		return core.Donation{}, err
	}
	return d, nil
}

// SubmitFunding stores a new pending funding application. Its effective
// budget lines must add up to the requested amount.
func (s *LedgerService) SubmitFunding(ctx context.Context, in FundingInput) (core.Funding, error) {
	items := core.EffectiveBudgetItems(in.BudgetItems)
	for i := range items {
		items[i].ID = strconv.Itoa(i + 1)
		items[i].Item = strings.TrimSpace(items[i].Item)
	}
	f := core.Funding{
		ID:              core.KindFunding.IDPrefix() + "-" + s.newID(),
		InstitutionName: strings.TrimSpace(in.InstitutionName),
		Amount:          in.Amount,
		Purpose:         strings.TrimSpace(in.Purpose),
		PurposeCategory: in.PurposeCategory,
		Description:     strings.TrimSpace(in.Description),
		BudgetItems:     items,
		Status:          core.StatusPending,
		ApplicationDate: core.DateOf(s.now()),
	}
	if err := f.Validate(); err != nil {
		return core.Funding{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.commit(ctx, core.KindFunding, f.ID, log.OpCreate,
		func() error {
			if err := s.store.UpsertFunding(ctx, f); err != nil {
				return fmt.Errorf("save funding: %w", err)
			}
			return nil
		},
		func(ctx context.Context) error { return s.store.DeleteFunding(ctx, f.ID) })
	if err != nil {
		return core.Funding{}, err
	}
	return f, nil
}

func (s *LedgerService) GetDonation(ctx context.Context, id string) (core.Donation, error) {
	return s.store.GetDonation(ctx, id)
}

func (s *LedgerService) GetFunding(ctx context.Context, id string) (core.Funding, error) {
	return s.store.GetFunding(ctx, id)
}

// ListDonations returns the donations passing flt, newest application first.
func (s *LedgerService) ListDonations(ctx context.Context, flt core.Filter) ([]core.Donation, error) {
	all, err := s.store.LoadDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load donations: %w", err)
	}
	out := make([]core.Donation, 0, len(all))
	for _, d := range all {
		if d.Matches(flt) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Donation) int {
		return newestFirst(a.ApplicationDate, b.ApplicationDate, a.ID, b.ID)
	})
	return out, nil
}

// ListFundings returns the fundings passing flt, newest application first.
func (s *LedgerService) ListFundings(ctx context.Context, flt core.Filter) ([]core.Funding, error) {
	all, err := s.store.LoadFundings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fundings: %w", err)
	}
	out := make([]core.Funding, 0, len(all))
	for _, f := range all {
		if f.Matches(flt) {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Funding) int {
		return newestFirst(a.ApplicationDate, b.ApplicationDate, a.ID, b.ID)
	})
	return out, nil
}

func newestFirst(a, b core.Date, idA, idB string) int {
	if c := b.Compare(a.Time); c != 0 {
		return c
	}
	return cmp.Compare(idB, idA)
}

func (s *LedgerService) Approve(ctx context.Context, kind core.RecordKind, id string) error {
	return s.Review(ctx, kind, id, core.ActionApprove, "")
}

func (s *LedgerService) Reject(ctx context.Context, kind core.RecordKind, id, opinion string) error {
	return s.Review(ctx, kind, id, core.ActionReject, opinion)
}

func (s *LedgerService) Complete(ctx context.Context, kind core.RecordKind, id string) error {
	return s.Review(ctx, kind, id, core.ActionComplete, "")
}

// Review applies a lifecycle action. Rejection needs an opinion; an approved
// funding is stamped with today's approval date.
func (s *LedgerService) Review(ctx context.Context, kind core.RecordKind, id string, action core.ReviewAction, opinion string) error {
	opinion = strings.TrimSpace(opinion)
	if action == core.ActionReject && opinion == "" {
		return core.ErrOpinionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		status core.Status
		amount core.Money
		write  func() error
		undo   func(context.Context) error
	)
	switch kind {
	case core.KindDonation:
		prev, err := s.store.GetDonation(ctx, id)
		if err != nil {
			return err
		}
		d := prev
		if d.Status, err = d.Status.Transition(action); err != nil {
			return err
		}
		if opinion != "" {
			d.ReviewOpinion = opinion
		}
		write = func() error { return s.store.UpsertDonation(ctx, d) }
		undo = func(ctx context.Context) error { return s.store.UpsertDonation(ctx, prev) }
		status, amount = d.Status, d.Amount
	case core.KindFunding:
		prev, err := s.store.GetFunding(ctx, id)
		if err != nil {
			return err
		}
		f := prev
		if f.Status, err = f.Status.Transition(action); err != nil {
			return err
		}
		if opinion != "" {
			f.ReviewOpinion = opinion
		}
		if action == core.ActionApprove {
			today := core.DateOf(s.now())
			f.ApprovalDate = &today
		}
		write = func() error { return s.store.UpsertFunding(ctx, f) }
		undo = func(ctx context.Context) error { return s.store.UpsertFunding(ctx, prev) }
		status, amount = f.Status, f.Amount
	default:
		return fmt.Errorf("%w: %q", core.ErrInvalidKind, string(kind))
	}

	err := s.commit(ctx, kind, id, string(action),
		func() error {
			if err := write(); err != nil {
				return fmt.Errorf("save %s %s: %w", kind, id, err)
			}
			return nil
		}, undo)
	if err != nil {
		return err
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogRecordReviewed(ctx, string(kind), id, string(status), amount.Cents)
	return nil
}

// Delete removes a record of either kind.
func (s *LedgerService) Delete(ctx context.Context, kind core.RecordKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case core.KindDonation:
		prev, err := s.store.GetDonation(ctx, id)
		if err != nil {
			return err
		}
		return s.commit(ctx, kind, id, log.OpDelete,
			func() error { return s.store.DeleteDonation(ctx, id) },
			func(ctx context.Context) error { return s.store.UpsertDonation(ctx, prev) })
	case core.KindFunding:
		prev, err := s.store.GetFunding(ctx, id)
		if err != nil {
			return err
		}
		return s.commit(ctx, kind, id, log.OpDelete,
			func() error { return s.store.DeleteFunding(ctx, id) },
			func(ctx context.Context) error { return s.store.UpsertFunding(ctx, prev) })
	}
	return fmt.Errorf("%w: %q", core.ErrInvalidKind, string(kind))
}

// Recompute rebuilds every monthly financial from the current records and
// replaces the stored set.
func (s *LedgerService) Recompute(ctx context.Context) ([]core.MonthlyFinancial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute(ctx)
}

func (s *LedgerService) recompute(ctx context.Context) ([]core.MonthlyFinancial, error) {
	donations, fundings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	financials := core.ComputeMonthlyFinancials(donations, fundings)
	if err := s.store.ReplaceFinancials(ctx, financials); err != nil {
		return nil, fmt.Errorf("replace financials: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentLedger).DebugContext(ctx, "Recomputed monthly financials",
		log.FieldOperation, log.OpRecompute,
		log.FieldMonths, len(financials))
	for _, fn := range s.listeners {
		fn()
	}
	return financials, nil
}

func (s *LedgerService) snapshot(ctx context.Context) ([]core.Donation, []core.Funding, error) {
	var (
		donations []core.Donation
		fundings  []core.Funding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if donations, err = s.store.LoadDonations(gctx); err != nil {
			return fmt.Errorf("load donations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if fundings, err = s.store.LoadFundings(gctx); err != nil {
			return fmt.Errorf("load fundings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return donations, fundings, nil
}

// commit applies write and rebuilds the financials. When the rebuild fails
// the record is put back with undo, so no mutation outlives a failed
// recompute. Callers hold s.mu.
func (s *LedgerService) commit(ctx context.Context, kind core.RecordKind, id, action string, write func() error, undo func(context.Context) error) error {
	if err := write(); err != nil {
		return err
	}
	err := s.afterChange(ctx, kind, id, action)
	if err == nil {
		return nil
	}
	if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
		log.FromContext(ctx).WithComponent(log.ComponentLedger).ErrorContext(ctx, "Failed to undo ledger change after recompute error",
			log.FieldOperation, action,
			log.FieldRecordID, id,
			log.FieldError, uerr.Error())
		return errors.Join(err, fmt.Errorf("undo %s %s: %w", action, id, uerr))
	}
	return err
}

// afterChange recomputes and then announces the change. A publish failure is
// logged only; the stored mutation stands.
func (s *LedgerService) afterChange(ctx context.Context, kind core.RecordKind, id, action string) error {
	financials, err := s.recompute(ctx)
	if err != nil {
		return fmt.Errorf("recompute after %s %s: %w", action, id, err)
	}

	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)
	if s.publisher == nil {
		logger.DebugContext(ctx, "No event publisher configured, skipping ledger event",
			log.FieldRecordID, id)
		return nil
	}
	msg := amqp.NewLedgerChangedMessage(string(kind), id, action, len(financials))
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldRecordID, id,
			log.FieldMessageID, msg.ID,
			log.FieldError, err.Error())
	}
	return nil
}

// Financials returns every stored monthly financial in month order.
func (s *LedgerService) Financials(ctx context.Context) ([]core.MonthlyFinancial, error) {
	fs, err := s.store.LoadFinancials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load financials: %w", err)
	}
	return fs, nil
}

// Financial returns one month, given as YYYY-MM.
func (s *LedgerService) Financial(ctx context.Context, month string) (core.MonthlyFinancial, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return core.MonthlyFinancial{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, month)
	}
	fs, err := s.Financials(ctx)
	if err != nil {
		return core.MonthlyFinancial{}, err
	}
	mf, ok := core.FindMonth(fs, month)
	if !ok {
		return core.MonthlyFinancial{}, fmt.Errorf("%w: %s", core.ErrMonthNotFound, month)
	}
	return mf, nil
}

// Dashboard summarizes records and financials as of now.
func (s *LedgerService) Dashboard(ctx context.Context, now time.Time) (core.Dashboard, error) {
	var (
		donations  []core.Donation
		fundings   []core.Funding
		financials []core.MonthlyFinancial
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		donations, err = s.store.LoadDonations(gctx)
		return err
	})
	g.Go(func() (err error) {
		fundings, err = s.store.LoadFundings(gctx)
		return err
	})
	g.Go(func() (err error) {
		financials, err = s.store.LoadFinancials(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, fmt.Errorf("load dashboard data: %w", err)
	}
	return core.BuildDashboard(donations, fundings, financials, now), nil
}

// Now is the service clock.
func (s *LedgerService) Now() time.Time {
	return s.now()
}
