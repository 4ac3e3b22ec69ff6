package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/sigmaun/prepo/internal/engine"
	"github.com/sigmaun/prepo/pkg/allocation"
	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/optimization"
	"github.com/sigmaun/prepo/pkg/savings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *engine.Report {
	water := calibration.NewRecord(0, "Water", nil)
	c := curve.Curve{Record: "Water", Index: 0, Points: []curve.Point{
		{Level: 0, Value: 0},
		{Level: 1000, Value: 1500},
		{Level: 2000, Value: 2500},
	}}
	m, _ := curve.Marginals(c)

	table := allocation.Table{
		Records: []string{"Water"},
		Low:     1,
		High:    1.5,
		Rows:    []allocation.Row{{Threshold: 1, Total: 2000, Spend: []float64{2000}}},
	}

	return &engine.Report{
		Model: savings.NameCappedLinear,
		Spec:  grid.Spec{Min: 0, Max: 2000, Step: 1000},
		Results: []curve.Result{
			{Record: water, Curve: c, Marginals: m, Diagnostics: curve.Diagnose(c, m)},
			{Record: calibration.NewRecord(1, "Food", nil), Err: errors.New("missing field \"cap\"")},
		},
		Allocation: &table,
		Optima: []optimization.Summary{
			{Record: "Water", Level: 1250, Savings: 1800, Converged: true},
		},
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrettyFormat(&buf, sampleReport()))
	output := buf.String()

	expected := []string{
		"Model capped-linear over grid",
		"--- Savings curve for Water (row 1) ---",
		"Level    | Savings       | Marginal      | Per unit",
		"1,000 | $1,500.00 | $1,500.00 | 1.5000",
		"2,000 | $2,500.00 | $1,000.00 | 1.0000",
		"--- Failed records ---",
		"Food (row 2): missing field \"cap\"",
		"--- Prepo allocation by marginal savings ---",
		"Threshold | Total prepo | Water",
		"1.0000 | $2,000.00 | $2,000.00",
		"--- Optimal prepo levels ---",
		"Water | 1,250 | $1,800.00 | ",
	}
	for _, fragment := range expected {
		if !strings.Contains(output, fragment) {
			t.Errorf("PrettyFormat output missing %q\n%s", fragment, output)
		}
	}
}

func TestPrettyFormatAllocationError(t *testing.T) {
	report := sampleReport()
	report.Allocation = nil
	report.AllocationErr = allocation.ErrNoCommonRange

	var buf bytes.Buffer
	require.NoError(t, PrettyFormat(&buf, report))
	assert.Contains(t, buf.String(), "Allocation unavailable: marginal savings ranges do not overlap")
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CsvFormat(&buf, sampleReport()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one row per grid point of the successful record")

	assert.Equal(t, CurveHeader, rows[0])
	assert.Equal(t, []string{"Water", "0", "0", "", ""}, rows[1])
	assert.Equal(t, []string{"Water", "1000", "1500", "1500", "1.5"}, rows[2])
	assert.Equal(t, []string{"Water", "2000", "2500", "1000", "1"}, rows[3])
}

func TestCsvFormatWithBreakdown(t *testing.T) {
	report := sampleReport()
	res := &report.Results[0]
	for i := range res.Curve.Points {
		res.Curve.Points[i].Breakdown = &savings.Breakdown{
			ExpectedPa: 0.5, ExpectedPD: 0.4, ExpectedPS: 0.3, ExpectedPcx: 0.1,
			MarginalSavings: 0.7, MarginalCost: 0.12, Net: 0.58,
		}
	}

	var buf bytes.Buffer
	require.NoError(t, CsvFormat(&buf, report))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, append(append([]string(nil), CurveHeader...), BreakdownHeader...), rows[0])
	assert.Equal(t, []string{"0.5", "0.4", "0.3", "0.1", "0.7", "0.12", "0.58"}, rows[1][len(CurveHeader):])
}

func TestWriteAllocationCSV(t *testing.T) {
	table := allocation.Table{
		Records: []string{"Water", "Food"},
		Rows: []allocation.Row{
			{Threshold: 0.5, Total: 300, Spend: []float64{200, 100}},
			{Threshold: 1.25, Total: 150, Spend: []float64{150, 0}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAllocationCSV(&buf, table))
	assert.Equal(t,
		"marginal_savings,total_prepo,Water,Food\n0.5,300,200,100\n1.25,150,150,0\n",
		buf.String())
}
