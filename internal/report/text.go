package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"edufund/internal/core"
)

type textSection struct {
	Label string
	Items []core.LineItem
	Total core.Money
}

type textData struct {
	Title         string
	MonthName     string
	Footer        string
	ExportedAt    string
	Summary       core.MonthlyFinancial
	Net           core.Money
	Income        textSection
	Expense       textSection
	AvgIncome     decimal.Decimal
	HasAvgIncome  bool
	AvgExpense    decimal.Decimal
	HasAvgExpense bool
}

const textTemplate = `{{define "details"}}{{if not .Items}}本月暂无{{.Label}}记录
{{else}}{{range $i, $it := .Items}}{{inc $i}}. {{$it.Description}}
   日期：{{$it.Date}}
   类别：{{$it.Category}}
   金额：¥{{money $it.Amount}}

{{end}}{{.Label}}合计：¥{{money .Total}}
{{end}}{{end}}{{rule "═" 43}}
      {{.Title}} - {{.MonthName}}
{{rule "═" 43}}

【财务汇总】
{{rule "─" 41}}
本月收入：¥{{money .Summary.Income}}
本月支出：¥{{money .Summary.Expense}}
月末余额：¥{{money .Summary.Balance}}

【收入明细】
{{rule "─" 41}}
{{template "details" .Income}}
【支出明细】
{{rule "─" 41}}
{{template "details" .Expense}}
【统计分析】
{{rule "─" 41}}
本月净变化：¥{{money .Net}}
收入笔数：{{len .Income.Items}} 笔
支出笔数：{{len .Expense.Items}} 笔
{{if .HasAvgIncome}}平均收入：¥{{yuan .AvgIncome}}
{{end}}{{if .HasAvgExpense}}平均支出：¥{{yuan .AvgExpense}}
{{end}}
{{rule "═" 43}}
导出时间：{{.ExportedAt}}
{{.Footer}}
{{rule "═" 43}}
`

var textTmpl = template.Must(template.New("financial").Funcs(template.FuncMap{
	"money": money,
	"yuan":  yuan,
	"inc":   func(i int) int { return i + 1 },
	"rule":  strings.Repeat,
}).Parse(textTemplate))

// Text writes the plain-text export of one month.
func Text(w io.Writer, mf core.MonthlyFinancial, exportedAt time.Time) error {
	data := textData{
		Title:      title,
		MonthName:  MonthName(mf.Month),
		Footer:     footer,
		ExportedAt: exportedAt.Format(exportTimeLayout),
		Summary:    mf,
		Net:        mf.Net(),
		Income:     textSection{Label: "收入", Items: mf.IncomeDetails, Total: mf.Income},
		Expense:    textSection{Label: "支出", Items: mf.ExpenseDetails, Total: mf.Expense},
	}
	data.AvgIncome, data.HasAvgIncome = average(mf.Income, len(mf.IncomeDetails))
	data.AvgExpense, data.HasAvgExpense = average(mf.Expense, len(mf.ExpenseDetails))

	if err := textTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}
