package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PurposeCategory classifies what a funding application pays for.
type PurposeCategory string

const (
	CategoryEquipment      PurposeCategory = "设备采购"
	CategoryInfrastructure PurposeCategory = "基础设施"
	CategoryTraining       PurposeCategory = "培训教育"
	CategoryStudentAid     PurposeCategory = "学生资助"
	CategoryOther          PurposeCategory = "其他"
)

// PurposeCategories lists the accepted categories in display order.
func PurposeCategories() []PurposeCategory {
	return []PurposeCategory{
		CategoryEquipment,
		CategoryInfrastructure,
		CategoryTraining,
		CategoryStudentAid,
		CategoryOther,
	}
}

func (c PurposeCategory) Validate() error {
	for _, known := range PurposeCategories() {
		if c == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
}

// BudgetItem is one line of a funding application's itemized budget.
type BudgetItem struct {
	ID          string `json:"id"`
	Item        string `json:"item"`
	Amount      Money  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// Funding is an expense record: money requested by a school or institution.
type Funding struct {
	ID              string          `json:"id"`
	InstitutionName string          `json:"institutionName"`
	Amount          Money           `json:"amount"`
	Purpose         string          `json:"purpose"`
	PurposeCategory PurposeCategory `json:"purposeCategory"`
	Description     string          `json:"description"`
	BudgetItems     []BudgetItem    `json:"budgetDetails"`
	Status          Status          `json:"status"`
	ApplicationDate Date            `json:"applicationDate"`
	ApprovalDate    *Date           `json:"approvalDate,omitempty"`
	ReviewOpinion   string          `json:"reviewOpinion,omitempty"`
}

// EffectiveBudgetItems drops lines without a name or with a non-positive amount.
func EffectiveBudgetItems(items []BudgetItem) []BudgetItem {
	out := make([]BudgetItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Item) == "" || it.Amount.Cents <= 0 {
			continue
		}
		out = append(out, it)
	}
	return out
}

// budgetTolerance is 0.01 yuan. Cents are exact, so a one cent gap is already a mismatch.
const budgetTolerance = 1

// CheckBudget verifies that the effective budget lines add up to the declared amount.
func CheckBudget(amount Money, items []BudgetItem) error {
	effective := EffectiveBudgetItems(items)
	if len(effective) == 0 {
		return ErrBudgetItemsRequired
	}
	// Summed as decimals: lines near the int64 limit must not wrap around.
	total := decimal.Zero
	for _, it := range effective {
		total = total.Add(decimal.NewFromInt(it.Amount.Cents))
	}
	if total.Sub(decimal.NewFromInt(amount.Cents)).Abs().GreaterThanOrEqual(decimal.NewFromInt(budgetTolerance)) {
		return fmt.Errorf("%w: items total %s, amount %s", ErrBudgetMismatch, total.Shift(-2).StringFixed(2), amount)
	}
	return nil
}

// Validate checks required fields, the category and the budget consistency.
func (f Funding) Validate() error {
	switch {
	case blank(f.InstitutionName):
		return requiredField("institutionName")
	case blank(f.Purpose):
		return requiredField("purpose")
	case blank(string(f.PurposeCategory)):
		return requiredField("purposeCategory")
	case blank(f.Description):
		return requiredField("description")
	}
	if len(f.InstitutionName) > 200 || len(f.Purpose) > 500 {
		return ErrFieldTooLong
	}
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if err := f.PurposeCategory.Validate(); err != nil {
		return err
	}
	if err := CheckBudget(f.Amount, f.BudgetItems); err != nil {
		return err
	}
	if err := f.Status.Validate(); err != nil {
		return err
	}
	if f.ApprovalDate != nil {
		if err := f.ApprovalDate.Validate(); err != nil {
			return err
		}
	}
	return f.ApplicationDate.Validate()
}

// LineItem is the funding's contribution to its month's expense details.
func (f Funding) LineItem() LineItem {
	return LineItem{
		ID:          f.ID,
		Date:        f.ApplicationDate,
		Description: f.InstitutionName + "的用款",
		Amount:      f.Amount,
		Category:    string(f.PurposeCategory),
	}
}

func (f Funding) Matches(flt Filter) bool {
	if flt.Status != "" && f.Status != flt.Status {
		return false
	}
	return flt.matchesKeyword(f.InstitutionName, f.Purpose, f.ID)
}
