package core

import (
	"slices"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// LineItem is one record folded into a monthly financial.
type LineItem struct {
	ID          string `json:"id"`
	Date        Date   `json:"date"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Category    string `json:"category"`
}

// MonthlyFinancial is the derived summary of one YYYY-MM month. Balance is the
// running total of income minus expense over this and every earlier month.
type MonthlyFinancial struct {
	Month          string     `json:"month"`
	Income         Money      `json:"income"`
	Expense        Money      `json:"expense"`
	Balance        Money      `json:"balance"`
	IncomeDetails  []LineItem `json:"incomeDetails"`
	ExpenseDetails []LineItem `json:"expenseDetails"`
}

// Net is the month's own income minus expense.
func (mf MonthlyFinancial) Net() Money {
	return mf.Income.Sub(mf.Expense)
}

func (mf MonthlyFinancial) IncomeByCategory() []CategoryAmount {
	return byCategory(mf.IncomeDetails)
}

func (mf MonthlyFinancial) ExpenseByCategory() []CategoryAmount {
	return byCategory(mf.ExpenseDetails)
}

func byCategory(items []LineItem) []CategoryAmount {
	var out []CategoryAmount
	idx := make(map[string]int)
	for _, it := range items {
		i, ok := idx[it.Category]
		if !ok {
			i = len(out)
			idx[it.Category] = i
			out = append(out, CategoryAmount{Name: it.Category})
		}
		out[i].Amount = out[i].Amount.Add(it.Amount)
		out[i].Count++
	}
	return out
}

// ComputeMonthlyFinancials rebuilds the monthly financials from the full record
// snapshots. Only approved and completed records count. Months come back in
// chronological order and line items keep the input order within a month.
func ComputeMonthlyFinancials(donations []Donation, fundings []Funding) []MonthlyFinancial {
	byMonth := make(map[string]*MonthlyFinancial)
	bucket := func(month string) *MonthlyFinancial {
		mf, ok := byMonth[month]
		if !ok {
			mf = &MonthlyFinancial{
				Month:          month,
				IncomeDetails:  []LineItem{},
				ExpenseDetails: []LineItem{},
			}
			byMonth[month] = mf
		}
		return mf
	}

	for _, d := range donations {
		if !d.Status.Counts() {
			continue
		}
		mf := bucket(d.ApplicationDate.MonthKey())
		mf.Income = mf.Income.Add(d.Amount)
		mf.IncomeDetails = append(mf.IncomeDetails, d.LineItem())
	}
	for _, f := range fundings {
		if !f.Status.Counts() {
			continue
		}
		mf := bucket(f.ApplicationDate.MonthKey())
		mf.Expense = mf.Expense.Add(f.Amount)
		mf.ExpenseDetails = append(mf.ExpenseDetails, f.LineItem())
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	slices.Sort(months)

	out := make([]MonthlyFinancial, 0, len(months))
	var running Money
	for _, m := range months {
		mf := byMonth[m]
		running = running.Add(mf.Net())
		mf.Balance = running
		out = append(out, *mf)
	}
	return out
}

// FindMonth returns the financial of month from a computed list.
func FindMonth(financials []MonthlyFinancial, month string) (MonthlyFinancial, bool) {
	for _, mf := range financials {
		if mf.Month == month {
			return mf, true
		}
	}
	return MonthlyFinancial{}, false
}

// BalanceAsOf is the running balance at the end of the latest month not after month.
func BalanceAsOf(financials []MonthlyFinancial, month string) Money {
	var bal Money
	for _, mf := range financials {
		if mf.Month > month {
			break
		}
		bal = mf.Balance
	}
	return bal
}

// Dashboard is the landing overview.
type Dashboard struct {
	Month            string         `json:"month"`
	MonthIncome      Money          `json:"monthIncome"`
	MonthExpense     Money          `json:"monthExpense"`
	Balance          Money          `json:"balance"`
	DonationsByState map[Status]int `json:"donationsByStatus"`
	FundingsByState  map[Status]int `json:"fundingsByStatus"`
	PendingReviews   int            `json:"pendingReviews"`
	GeneratedAt      time.Time      `json:"generatedAt"`
}

// BuildDashboard summarizes the records and financials for the month containing now.
func BuildDashboard(donations []Donation, fundings []Funding, financials []MonthlyFinancial, now time.Time) Dashboard {
	month := DateOf(now).MonthKey()
	db := Dashboard{
		Month:            month,
		Balance:          BalanceAsOf(financials, month),
		DonationsByState: make(map[Status]int),
		FundingsByState:  make(map[Status]int),
		GeneratedAt:      now,
	}
	if mf, ok := FindMonth(financials, month); ok {
		db.MonthIncome = mf.Income
		db.MonthExpense = mf.Expense
	}
	for _, d := range donations {
		db.DonationsByState[d.Status]++
	}
	for _, f := range fundings {
		db.FundingsByState[f.Status]++
	}
	db.PendingReviews = db.DonationsByState[StatusPending] + db.FundingsByState[StatusPending]
	return db
}
