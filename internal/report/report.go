// Package report renders monthly financials and calibration sessions as
// downloadable CSV and plain-text documents.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"edufund/internal/core"
)

// Format is an export file format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
)

const (
	title  = "教育基金会财务报表"
	footer = "本报表由教育基金会管理系统自动生成"

	exportTimeLayout = "2006/1/2 15:04:05"
)

// ParseFormat accepts csv or txt, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatTXT:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType is the HTTP media type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Filename is the download name for a month's report, e.g. 财务报表_2024-09.csv.
func Filename(month string, f Format) string {
	return fmt.Sprintf("财务报表_%s.%s", month, f)
}

// Write renders mf in format f.
func Write(w io.Writer, f Format, mf core.MonthlyFinancial, exportedAt time.Time) error {
	switch f {
	case FormatCSV:
		return CSV(w, mf, exportedAt)
	case FormatTXT:
		return Text(w, mf, exportedAt)
	}
	return fmt.Errorf("unsupported export format %q", string(f))
}

// MonthName renders 2024-09 as 2024年9月. Unparseable input is returned as is.
func MonthName(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return fmt.Sprintf("%d年%d月", t.Year(), int(t.Month()))
}

var zhPrinter = message.NewPrinter(language.SimplifiedChinese)

// yuan formats an amount with zh-CN digit grouping and two decimals. Only
// the integer part goes through the printer, so cents are never rounded
// through a float.
func yuan(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + fixed
	}
	return sign + zhPrinter.Sprintf("%d", n) + "." + frac
}

func money(m core.Money) string {
	return yuan(m.Yuan())
}

// average is total divided by n rounded to cents, or false when n is zero.
func average(total core.Money, n int) (decimal.Decimal, bool) {
	if n == 0 {
		return decimal.Zero, false
	}
	return total.Yuan().Div(decimal.NewFromInt(int64(n))).Round(2), true
}
