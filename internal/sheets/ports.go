package sheets

import (
	"context"

	"edufund/internal/core"
)

// MonthRow is one month as mirrored in the summary sheet.
type MonthRow struct {
	Month        string
	Income       core.Money
	Expense      core.Money
	Net          core.Money
	Balance      core.Money
	IncomeCount  int
	ExpenseCount int
}

// RowOf projects a monthly financial onto its sheet row.
func RowOf(mf core.MonthlyFinancial) MonthRow {
	return MonthRow{
		Month:        mf.Month,
		Income:       mf.Income,
		Expense:      mf.Expense,
		Net:          mf.Net(),
		Balance:      mf.Balance,
		IncomeCount:  len(mf.IncomeDetails),
		ExpenseCount: len(mf.ExpenseDetails),
	}
}

// Ports for outbound adapters.
type (
	// FinancialWriter replaces the mirrored monthly summary with fs.
	FinancialWriter interface {
		WriteFinancials(ctx context.Context, fs []core.MonthlyFinancial) error
	}

	// FinancialReader returns the rows currently in the summary sheet.
	FinancialReader interface {
		ReadFinancials(ctx context.Context) ([]MonthRow, error)
	}

	FinancialMirror interface {
		FinancialWriter
		FinancialReader
	}
)
