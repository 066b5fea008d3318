package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/erp/dre/internal/domain/dre"
)

type TableConfig struct {
	NameWidth    int
	AmountWidth  int
	PercentWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		NameWidth:    40,
		AmountWidth:  18,
		PercentWidth: 9,
	}
}

// Reporter writes a report as a fixed-width text table
type Reporter struct {
	writer    io.Writer
	config    TableConfig
	formatter *dre.Formatter
}

func NewReporter(writer io.Writer, formatter *dre.Formatter) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer:    writer,
		config:    DefaultTableConfig(),
		formatter: formatter,
	}
}

type reportView struct {
	Title      string
	Period     dre.Period
	Comparison *dre.Period
	Records    int
	Header     []string
	Rows       [][]string
	Totals     [][2]string
	Warnings   []dre.Warning
}

const reportTemplate = `
{{.Title}}
Period: {{.Period.Start.Format "2006-01-02"}} to {{.Period.End.Format "2006-01-02"}}
{{- if .Comparison}}
Compared with: {{.Comparison.Start.Format "2006-01-02"}} to {{.Comparison.End.Format "2006-01-02"}}
{{- end}}
Records: {{.Records}}

{{separator}}
{{formatRow .Header}}
{{separator}}
{{range .Rows}}{{formatRow .}}
{{end}}{{separator}}

=== Totals ===
{{range .Totals}}{{index . 0}}: {{index . 1}}
{{end}}
{{- if .Warnings}}
=== Warnings ===
{{range .Warnings}}- [{{.Kind}}]{{if .Code}} {{.Code}}:{{end}} {{.Message}}
{{end}}
{{- end}}`

func (r *Reporter) Handle(result *dre.ReportResult) error {
	view := r.view(result)
	columns := len(view.Header)

	funcMap := template.FuncMap{
		"formatRow": func(cells []string) string {
			var b strings.Builder
			b.WriteString("|")
			for i, cell := range cells {
				if i == 0 {
					fmt.Fprintf(&b, " %-*s |", r.config.NameWidth, truncate(cell, r.config.NameWidth))
					continue
				}
				fmt.Fprintf(&b, " %*s |", r.width(i), cell)
			}
			return b.String()
		},
		"separator": func() string {
			var b strings.Builder
			b.WriteString("+")
			for i := 0; i < columns; i++ {
				w := r.config.NameWidth
				if i > 0 {
					w = r.width(i)
				}
				b.WriteString(strings.Repeat("-", w+2))
				b.WriteString("+")
			}
			return b.String()
		},
	}

	t, err := template.New("report").Funcs(funcMap).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(r.writer, view)
}

// width of value column i: percentage columns are the 2nd and the last one
func (r *Reporter) width(i int) int {
	switch i {
	case 2, 5:
		return r.config.PercentWidth
	default:
		return r.config.AmountWidth
	}
}

func (r *Reporter) view(result *dre.ReportResult) reportView {
	f := r.formatter
	comparison := result.Metadata.ComparisonPeriod != nil

	v := reportView{
		Title:      result.TemplateName,
		Period:     result.Metadata.Period,
		Comparison: result.Metadata.ComparisonPeriod,
		Records:    result.Metadata.RecordCount,
		Header:     []string{"Line item", "Value", "% Rev"},
		Warnings:   result.Metadata.Warnings,
	}
	if comparison {
		v.Header = append(v.Header, "Comparison", "Variance", "Var %")
	}

	for _, row := range dre.Flatten(result) {
		name := strings.Repeat("  ", row.Depth) + row.Name
		if row.HasWarnings {
			name += " *"
		}
		cells := []string{name, f.Amount(row.Value), f.Percent(row.PercentageOfRevenue)}
		if comparison {
			cells = append(cells,
				f.NullAmount(row.ComparisonValue),
				f.NullAmount(row.Variance),
				f.NullPercent(row.VariancePercentage),
			)
		}
		v.Rows = append(v.Rows, cells)
	}

	t := result.Totals
	v.Totals = [][2]string{
		{"Total revenue", f.Amount(t.TotalRevenue)},
		{"Total expenses", f.Amount(t.TotalExpenses)},
		{"Gross profit", f.Amount(t.GrossProfit)},
		{"EBITDA", f.Amount(t.EBITDA)},
		{"Net profit", f.Amount(t.NetProfit)},
		{"Gross margin", f.Percent(t.GrossMargin)},
		{"EBITDA margin", f.Percent(t.EBITDAMargin)},
		{"Net margin", f.Percent(t.NetMargin)},
	}
	return v
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
