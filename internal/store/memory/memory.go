// Package memory is an in-process implementation of the storage ports. It
// backs the memory backend and the service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"edufund/internal/core"
)

type Store struct {
	mu         sync.RWMutex
	donations  []core.Donation
	fundings   []core.Funding
	financials []core.MonthlyFinancial
	users      map[string]core.User
	detections []core.Detection
}

func New() *Store {
	return &Store{users: make(map[string]core.User)}
}

// Donations

func (s *Store) LoadDonations(_ context.Context) ([]core.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.donations), nil
}

func (s *Store) SaveDonations(_ context.Context, ds []core.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations = slices.Clone(ds)
	return nil
}

func (s *Store) GetDonation(_ context.Context, id string) (core.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.donations, func(d core.Donation) bool { return d.ID == id })
	if i < 0 {
		return core.Donation{}, fmt.Errorf("donation %s: %w", id, core.ErrNotFound)
	}
	return s.donations[i], nil
}

func (s *Store) UpsertDonation(_ context.Context, d core.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.donations, func(x core.Donation) bool { return x.ID == d.ID }); i >= 0 {
		s.donations[i] = d
		return nil
	}
	s.donations = append(s.donations, d)
	return nil
}

func (s *Store) DeleteDonation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.donations)
	s.donations = slices.DeleteFunc(s.donations, func(d core.Donation) bool { return d.ID == id })
	if len(s.donations) == n {
		return fmt.Errorf("donation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Fundings

func (s *Store) LoadFundings(_ context.Context) ([]core.Funding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Funding, len(s.fundings))
	for i, f := range s.fundings {
		out[i] = cloneFunding(f)
	}
	return out, nil
}

func (s *Store) SaveFundings(_ context.Context, fs []core.Funding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fundings = make([]core.Funding, len(fs))
	for i, f := range fs {
		s.fundings[i] = cloneFunding(f)
	}
	return nil
}

func (s *Store) GetFunding(_ context.Context, id string) (core.Funding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.fundings, func(f core.Funding) bool { return f.ID == id })
	if i < 0 {
		return core.Funding{}, fmt.Errorf("funding %s: %w", id, core.ErrNotFound)
	}
	return cloneFunding(s.fundings[i]), nil
}

func (s *Store) UpsertFunding(_ context.Context, f core.Funding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f = cloneFunding(f)
	if i := slices.IndexFunc(s.fundings, func(x core.Funding) bool { return x.ID == f.ID }); i >= 0 {
		s.fundings[i] = f
		return nil
	}
	s.fundings = append(s.fundings, f)
	return nil
}

func (s *Store) DeleteFunding(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.fundings)
	s.fundings = slices.DeleteFunc(s.fundings, func(f core.Funding) bool { return f.ID == id })
	if len(s.fundings) == n {
		return fmt.Errorf("funding %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func cloneFunding(f core.Funding) core.Funding {
	f.BudgetItems = slices.Clone(f.BudgetItems)
	if f.ApprovalDate != nil {
		d := *f.ApprovalDate
		f.ApprovalDate = &d
	}
	return f
}

// Monthly financials

func (s *Store) LoadFinancials(_ context.Context) ([]core.MonthlyFinancial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.MonthlyFinancial, len(s.financials))
	for i, mf := range s.financials {
		out[i] = cloneFinancial(mf)
	}
	return out, nil
}

func (s *Store) ReplaceFinancials(_ context.Context, fs []core.MonthlyFinancial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.financials = make([]core.MonthlyFinancial, len(fs))
	for i, mf := range fs {
		s.financials[i] = cloneFinancial(mf)
	}
	return nil
}

func cloneFinancial(mf core.MonthlyFinancial) core.MonthlyFinancial {
	mf.IncomeDetails = slices.Clone(mf.IncomeDetails)
	mf.ExpenseDetails = slices.Clone(mf.ExpenseDetails)
	return mf
}

// Users

func (s *Store) GetUser(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", username, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return fmt.Errorf("create user %s: %w", u.Username, core.ErrUsernameTaken)
	}
	s.users[u.Username] = u
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user %s: %w", username, core.ErrNotFound)
	}
	u.PasswordHash = hash
	s.users[username] = u
	return nil
}

// Detections

// ListDetections returns the sessions newest first.
func (s *Store) ListDetections(_ context.Context) ([]core.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Detection, len(s.detections))
	for i, d := range s.detections {
		out[i] = cloneDetection(d)
	}
	slices.SortStableFunc(out, func(a, b core.Detection) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetDetection(_ context.Context, id string) (core.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.detections, func(d core.Detection) bool { return d.ID == id })
	if i < 0 {
		return core.Detection{}, fmt.Errorf("detection %s: %w", id, core.ErrNotFound)
	}
	return cloneDetection(s.detections[i]), nil
}

func (s *Store) UpsertDetection(_ context.Context, d core.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d = cloneDetection(d)
	if i := slices.IndexFunc(s.detections, func(x core.Detection) bool { return x.ID == d.ID }); i >= 0 {
		s.detections[i] = d
		return nil
	}
	s.detections = append(s.detections, d)
	return nil
}

func (s *Store) DeleteDetection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.detections)
	s.detections = slices.DeleteFunc(s.detections, func(d core.Detection) bool { return d.ID == id })
	if len(s.detections) == n {
		return fmt.Errorf("detection %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func cloneDetection(d core.Detection) core.Detection {
	d.Experiment = slices.Clone(d.Experiment)
	d.Result.FinalResults = slices.Clone(d.Result.FinalResults)
	return d
}
