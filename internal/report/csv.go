package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"edufund/internal/core"
)

// utf8BOM lets spreadsheet programs detect the encoding of the Chinese text.
const utf8BOM = "\uFEFF"

// CSV writes the spreadsheet export of one month.
func CSV(w io.Writer, mf core.MonthlyFinancial, exportedAt time.Time) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	records := [][]string{
		{fmt.Sprintf("%s - %s", title, MonthName(mf.Month))},
		nil,
		{"财务汇总"},
		{"项目", "金额（元）"},
		{"本月收入", mf.Income.String()},
		{"本月支出", mf.Expense.String()},
		{"月末余额", mf.Balance.String()},
		nil,
	}
	records = appendDetails(records, "收入明细", "收入合计", mf.IncomeDetails, mf.Income)
	records = appendDetails(records, "支出明细", "支出合计", mf.ExpenseDetails, mf.Expense)
	records = append(records,
		[]string{"备注"},
		[]string{"导出时间: " + exportedAt.Format(exportTimeLayout)},
		[]string{footer},
	)

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func appendDetails(records [][]string, heading, totalLabel string, items []core.LineItem, total core.Money) [][]string {
	records = append(records,
		[]string{heading},
		[]string{"日期", "描述", "类别", "金额（元）"},
	)
	for _, it := range items {
		records = append(records, []string{it.Date.String(), it.Description, it.Category, it.Amount.String()})
	}
	return append(records, []string{totalLabel, "", "", total.String()}, nil)
}
