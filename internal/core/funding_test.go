package core

import (
	"errors"
	"testing"
)

func items(cents ...int64) []BudgetItem {
	out := make([]BudgetItem, len(cents))
	for i, c := range cents {
		out[i] = BudgetItem{ID: string(rune('a' + i)), Item: "line", Amount: Money{Cents: c}}
	}
	return out
}

func TestCheckBudget(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		items  []BudgetItem
		want   error
	}{
		{"exact", 10000000, items(8000000, 2000000), nil},
		{"short by one cent", 10000000, items(9999999), ErrBudgetMismatch},
		{"over by one cent", 10000000, items(10000001), ErrBudgetMismatch},
		{"far off", 10000000, items(5000000), ErrBudgetMismatch},
		{"no items", 10000000, nil, ErrBudgetItemsRequired},
		{
			"only ineffective items",
			100,
			[]BudgetItem{{Item: "", Amount: Money{Cents: 100}}, {Item: "desk", Amount: Money{}}},
			ErrBudgetItemsRequired,
		},
		{
			"ineffective items ignored",
			100,
			[]BudgetItem{{Item: "desk", Amount: Money{Cents: 100}}, {Item: " ", Amount: Money{Cents: 999}}},
			nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckBudget(Money{Cents: tc.amount}, tc.items)
			if tc.want == nil && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCheckBudgetDoesNotWrapAround(t *testing.T) {
	const max = int64(1<<63 - 1)
	// max + max + 102 wraps to exactly 100 in int64 arithmetic.
	err := CheckBudget(Money{Cents: 100}, items(max, max, 102))
	if !errors.Is(err, ErrBudgetMismatch) {
		t.Fatalf("err = %v, want %v", err, ErrBudgetMismatch)
	}
	if err := CheckBudget(Money{Cents: max}, items(max-1, 1)); err != nil {
		t.Fatalf("exact total at the limit rejected: %v", err)
	}
}

func validFunding() Funding {
	return Funding{
		ID:              "FUND-1",
		InstitutionName: "阳光小学",
		Amount:          Money{Cents: 15000000},
		Purpose:         "多媒体教室",
		PurposeCategory: CategoryEquipment,
		Description:     "采购投影设备",
		BudgetItems:     items(8000000, 5000000, 2000000),
		Status:          StatusPending,
		ApplicationDate: NewDate(2024, 10, 1),
	}
}

func TestFundingValidate(t *testing.T) {
	if err := validFunding().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutations := map[string]func(*Funding){
		"institution": func(f *Funding) { f.InstitutionName = "" },
		"purpose":     func(f *Funding) { f.Purpose = "" },
		"category":    func(f *Funding) { f.PurposeCategory = "" },
		"unknown cat": func(f *Funding) { f.PurposeCategory = "旅游" },
		"description": func(f *Funding) { f.Description = "" },
		"amount":      func(f *Funding) { f.Amount = Money{} },
		"budget":      func(f *Funding) { f.BudgetItems = items(100) },
		"date":        func(f *Funding) { f.ApplicationDate = Date{} },
	}
	for name, mutate := range mutations {
		f := validFunding()
		mutate(&f)
		if err := f.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
