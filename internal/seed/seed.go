// Package seed loads the sample accounts and ledger records used for demos
// and first runs.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/ports"
)

//go:embed sample.yaml
var sampleYAML []byte

type fixtureFile struct {
	Users     []userEntry     `yaml:"users"`
	Donations []donationEntry `yaml:"donations"`
	Fundings  []fundingEntry  `yaml:"fundings"`
}

type userEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Phone    string `yaml:"phone"`
}

type donationEntry struct {
	ID              string `yaml:"id"`
	DonorType       string `yaml:"donor_type"`
	DonorName       string `yaml:"donor_name"`
	ContactPhone    string `yaml:"contact_phone"`
	IDNumber        string `yaml:"id_number"`
	Amount          string `yaml:"amount"`
	Purpose         string `yaml:"purpose"`
	Notes           string `yaml:"notes"`
	Status          string `yaml:"status"`
	ApplicationDate string `yaml:"application_date"`
	Certificate     string `yaml:"certificate"`
	ReviewOpinion   string `yaml:"review_opinion"`
}

type budgetEntry struct {
	Item        string `yaml:"item"`
	Amount      string `yaml:"amount"`
	Description string `yaml:"description"`
}

type fundingEntry struct {
	ID              string        `yaml:"id"`
	InstitutionName string        `yaml:"institution_name"`
	Amount          string        `yaml:"amount"`
	Purpose         string        `yaml:"purpose"`
	PurposeCategory string        `yaml:"purpose_category"`
	Description     string        `yaml:"description"`
	Status          string        `yaml:"status"`
	ApplicationDate string        `yaml:"application_date"`
	ApprovalDate    string        `yaml:"approval_date"`
	ReviewOpinion   string        `yaml:"review_opinion"`
	Budget          []budgetEntry `yaml:"budget"`
}

// Fixture is a validated set of records ready to be written.
type Fixture struct {
	Users     []core.Registration
	Donations []core.Donation
	Fundings  []core.Funding
}

// Sample returns the embedded demo fixture.
func Sample() (Fixture, error) {
	return Parse(sampleYAML)
}

// LoadFile reads a fixture from disk.
func LoadFile(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML fixture.
func Parse(data []byte) (Fixture, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Fixture{}, fmt.Errorf("parse seed yaml: %w", err)
	}

	var fx Fixture
	for _, u := range file.Users {
		fx.Users = append(fx.Users, core.Registration{
			Username:        u.Username,
			Password:        u.Password,
			ConfirmPassword: u.Password,
			Phone:           u.Phone,
		})
	}
	for _, e := range file.Donations {
		d, err := e.toDonation()
		if err != nil {
			return Fixture{}, fmt.Errorf("donation %s: %w", e.ID, err)
		}
		fx.Donations = append(fx.Donations, d)
	}
	for _, e := range file.Fundings {
		f, err := e.toFunding()
		if err != nil {
			return Fixture{}, fmt.Errorf("funding %s: %w", e.ID, err)
		}
		fx.Fundings = append(fx.Fundings, f)
	}
	return fx, nil
}

func (e donationEntry) toDonation() (core.Donation, error) {
	amount, err := core.ParseMoney(e.Amount)
	if err != nil {
		return core.Donation{}, err
	}
	status, err := core.ParseStatus(e.Status)
	if err != nil {
		return core.Donation{}, err
	}
	date, err := core.ParseDate(e.ApplicationDate)
	if err != nil {
		return core.Donation{}, err
	}
	d := core.Donation{
		ID:              e.ID,
		DonorType:       core.DonorType(e.DonorType),
		DonorName:       e.DonorName,
		ContactPhone:    e.ContactPhone,
		IDNumber:        e.IDNumber,
		Amount:          amount,
		Purpose:         e.Purpose,
		Notes:           e.Notes,
		Status:          status,
		ApplicationDate: date,
		Certificate:     e.Certificate,
		ReviewOpinion:   e.ReviewOpinion,
	}
	if d.ID == "" {
		return core.Donation{}, fmt.Errorf("%w: id", core.ErrRequiredField)
	}
	return d, d.Validate()
}

func (e fundingEntry) toFunding() (core.Funding, error) {
	amount, err := core.ParseMoney(e.Amount)
	if err != nil {
		return core.Funding{}, err
	}
	status, err := core.ParseStatus(e.Status)
	if err != nil {
		return core.Funding{}, err
	}
	date, err := core.ParseDate(e.ApplicationDate)
	if err != nil {
		return core.Funding{}, err
	}
	f := core.Funding{
		ID:              e.ID,
		InstitutionName: e.InstitutionName,
		Amount:          amount,
		Purpose:         e.Purpose,
		PurposeCategory: core.PurposeCategory(e.PurposeCategory),
		Description:     e.Description,
		Status:          status,
		ApplicationDate: date,
		ReviewOpinion:   e.ReviewOpinion,
	}
	if e.ApprovalDate != "" {
		approved, err := core.ParseDate(e.ApprovalDate)
		if err != nil {
			return core.Funding{}, err
		}
		f.ApprovalDate = &approved
	}
	for i, b := range e.Budget {
		lineAmount, err := core.ParseMoney(b.Amount)
		if err != nil {
			return core.Funding{}, fmt.Errorf("budget line %d: %w", i+1, err)
		}
		f.BudgetItems = append(f.BudgetItems, core.BudgetItem{
			ID:          fmt.Sprint(i + 1),
			Item:        b.Item,
			Amount:      lineAmount,
			Description: b.Description,
		})
	}
	if f.ID == "" {
		return core.Funding{}, fmt.Errorf("%w: id", core.ErrRequiredField)
	}
	return f, f.Validate()
}

type (
	// Store receives the seeded records.
	Store interface {
		ports.DonationStore
		ports.FundingStore
	}

	Registrar interface {
		Register(ctx context.Context, reg core.Registration) (core.User, error)
	}

	Recomputer interface {
		Recompute(ctx context.Context) ([]core.MonthlyFinancial, error)
	}
)

// Seed writes fx unless the store already holds donations or fundings.
// With force it replaces whatever is there. Existing usernames are kept.
// It reports whether the ledger was written.
func Seed(ctx context.Context, store Store, accounts Registrar, ledger Recomputer, fx Fixture, force bool) (bool, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentSeed)

	for _, reg := range fx.Users {
		_, err := accounts.Register(ctx, reg)
		if err != nil && !errors.Is(err, core.ErrUsernameTaken) {
			return false, fmt.Errorf("seed user %s: %w", reg.Username, err)
		}
	}

	if !force {
		donations, err := store.LoadDonations(ctx)
		if err != nil {
			return false, fmt.Errorf("load donations: %w", err)
		}
		fundings, err := store.LoadFundings(ctx)
		if err != nil {
			return false, fmt.Errorf("load fundings: %w", err)
		}
		if len(donations) > 0 || len(fundings) > 0 {
			logger.InfoContext(ctx, "Ledger already populated, skipping seed",
				"donations", len(donations),
				"fundings", len(fundings))
			return false, nil
		}
	}

	if err := store.SaveDonations(ctx, fx.Donations); err != nil {
		return false, fmt.Errorf("save donations: %w", err)
	}
	if err := store.SaveFundings(ctx, fx.Fundings); err != nil {
		return false, fmt.Errorf("save fundings: %w", err)
	}
	financials, err := ledger.Recompute(ctx)
	if err != nil {
		return true, fmt.Errorf("recompute after seed: %w", err)
	}

	logger.InfoContext(ctx, "Seeded sample data",
		log.FieldOperation, log.OpSeed,
		"donations", len(fx.Donations),
		"fundings", len(fx.Fundings),
		log.FieldMonths, len(financials))
	return true, nil
}
