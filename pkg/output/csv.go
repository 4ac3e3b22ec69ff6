package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sigmaun/prepo/internal/engine"
	"github.com/sigmaun/prepo/pkg/allocation"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/savings"
)

// CurveHeader is the leading CSV header; BreakdownHeader follows it when the
// model explains its values.
var (
	CurveHeader     = []string{"record", "level", "savings", "marginal", "marginal_per_unit"}
	BreakdownHeader = []string{"E[P_a]", "E[P_D]", "E[P_S]", "E[P_cx]", "m_s", "m_c", "m"}
)

// CsvFormat writes one row per grid point of every successful record. The
// first row of each record has empty marginal cells. Failed records are not
// written.
func CsvFormat(w io.Writer, report *engine.Report) error {
	results := report.Succeeded()
	withBreakdown := hasBreakdown(results)

	header := append([]string(nil), CurveHeader...)
	if withBreakdown {
		header = append(header, BreakdownHeader...)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, res := range results {
		for _, row := range curveRows(res, withBreakdown) {
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAllocationCSV writes the allocation table: threshold, total, then one
// spend column per record.
func WriteAllocationCSV(w io.Writer, table allocation.Table) error {
	writer := csv.NewWriter(w)
	header := append([]string{"marginal_savings", "total_prepo"}, table.Records...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		out := make([]string, 0, len(row.Spend)+2)
		out = append(out, number(row.Threshold), number(row.Total))
		for _, spend := range row.Spend {
			out = append(out, number(spend))
		}
		if err := writer.Write(out); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func curveRows(res curve.Result, withBreakdown bool) [][]string {
	rows := make([][]string, 0, len(res.Curve.Points))
	for i, point := range res.Curve.Points {
		row := []string{recordName(res), strconv.Itoa(point.Level), number(point.Value), "", ""}
		if i > 0 {
			m := res.Marginals.Points[i-1]
			row[3] = number(m.Value)
			row[4] = number(m.PerUnit)
		}
		if withBreakdown {
			row = append(row, breakdownCells(point.Breakdown)...)
		}
		rows = append(rows, row)
	}
	return rows
}

func breakdownCells(b *savings.Breakdown) []string {
	if b == nil {
		return make([]string, len(BreakdownHeader))
	}
	return []string{
		number(b.ExpectedPa), number(b.ExpectedPD), number(b.ExpectedPS), number(b.ExpectedPcx),
		number(b.MarginalSavings), number(b.MarginalCost), number(b.Net),
	}
}

func hasBreakdown(results []curve.Result) bool {
	for _, res := range results {
		if len(res.Curve.Points) > 0 && res.Curve.Points[0].Breakdown != nil {
			return true
		}
	}
	return false
}

// recordName prefers the label and falls back to the row identifier.
func recordName(res curve.Result) string {
	if res.Record.Label != "" {
		return res.Record.Label
	}
	return res.Record.ID()
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
