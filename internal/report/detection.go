package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode/utf8"

	"edufund/internal/core"
)

const detectionTemplate = `{{rule "═" 43}}
      {{.Device.ProductName}} 检测报告
{{rule "═" 43}}
报告编号：{{.ID}}
保存时间：{{.Timestamp.Format "2006/1/2 15:04:05"}}

【设备信息】
{{rule "─" 41}}
产品编号：{{.Device.ProductCode}}
产品名称：{{.Device.ProductName}}
生产厂家：{{.Device.Manufacturer}}
型号规格：{{.Device.ModelNumber}}
出厂日期：{{.Device.ProductionDate}}
检定日期：{{.Device.InspectionDate}}
产地：{{.Device.Origin}}
{{- with .Device.Notes}}
备注：{{.}}{{end}}

【实验数据】
{{rule "─" 41}}
{{row "序号" "项目" "档位" "百分比" "下限" "上限" "测量值"}}
{{range .Experiment}}{{row .ID .Item .Gear .Percentage .LowerLimit .UpperLimit .MeasuredValue}}
{{end}}
【检测结果】
{{rule "─" 41}}
二次电压：{{.Result.SecondaryVoltage}}
计量点：{{.Result.MeteringPoint}}
测试日期：{{.Result.TestDate}}
tanφ：{{.Result.TanPhi}}
温度：{{.Result.Temperature}}
湿度：{{.Result.Humidity}}
{{row "相别" "f" "d" "dU" "Upt" "Uyb"}}
{{phase "AO" .Result.Phases.AO}}
{{phase "BO" .Result.Phases.BO}}
{{phase "CO" .Result.Phases.CO}}
r值：{{.Result.RValue}}
{{- range $i, $r := .Result.FinalResults}}
结论{{inc $i}}：{{$r}}{{end}}
{{rule "═" 43}}
`

const cellWidth = 10

// pad right-aligns s to cellWidth display columns, counting wide runes twice.
func pad(s string) string {
	w := 0
	for _, r := range s {
		if utf8.RuneLen(r) > 1 {
			w += 2
		} else {
			w++
		}
	}
	if w >= cellWidth {
		return s
	}
	return s + strings.Repeat(" ", cellWidth-w)
}

func row(cells ...string) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(pad(c))
	}
	return strings.TrimRight(b.String(), " ")
}

var detectionTmpl = template.Must(template.New("detection").Funcs(template.FuncMap{
	"rule": strings.Repeat,
	"inc":  func(i int) int { return i + 1 },
	"row":  row,
	"phase": func(name string, p core.PhaseReading) string {
		return row(name, p.F, p.D, p.DU, p.Upt, p.Uyb)
	},
}).Parse(detectionTemplate))

// Detection writes the printable record of a calibration session. Readings
// are reproduced exactly as entered.
func Detection(w io.Writer, d core.Detection) error {
	if err := detectionTmpl.Execute(w, d); err != nil {
		return fmt.Errorf("render detection report: %w", err)
	}
	return nil
}

// DetectionFilename is the download name of a calibration report.
func DetectionFilename(d core.Detection) string {
	code := strings.TrimSpace(d.Device.ProductCode)
	if code == "" {
		code = d.ID
	}
	return fmt.Sprintf("检测报告_%s.txt", code)
}
