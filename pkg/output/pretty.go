// Package output provides utilities for formatting and displaying curve results.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/sigmaun/prepo/internal/engine"
	"github.com/sigmaun/prepo/pkg/allocation"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/format"
	"github.com/sigmaun/prepo/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat writes a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, report *engine.Report) error {
	p := message.NewPrinter(language.English)
	ew := &errWriter{w: w}

	ew.printf("Model %s over grid %v\n\n", report.Model, report.Spec)
	for _, res := range report.Succeeded() {
		prettyCurve(ew, p, res)
		ew.printf("\n")
	}

	if failed := report.Failed(); len(failed) > 0 {
		ew.printf("--- Failed records ---\n")
		for _, res := range failed {
			ew.printf("%s: %v\n", res.Record.ID(), res.Err)
		}
		ew.printf("\n")
	}

	switch {
	case report.Allocation != nil:
		prettyAllocation(ew, p, *report.Allocation)
		ew.printf("\n")
	case report.AllocationErr != nil:
		ew.printf("Allocation unavailable: %v\n\n", report.AllocationErr)
	}

	if len(report.Optima) > 0 {
		prettyOptima(ew, p, report.Optima)
	}
	return ew.err
}

func prettyCurve(ew *errWriter, p *message.Printer, res curve.Result) {
	ew.printf("--- Savings curve for %s ---\n", res.Record.ID())
	ew.printf("Level    | Savings       | Marginal      | Per unit\n")
	ew.printf("_____    | _______       | ________      | ________\n")
	for i, point := range res.Curve.Points {
		if i == 0 {
			ew.printf("%s | %s |               |\n", p.Sprintf("%d", point.Level), format.Currency(point.Value))
			continue
		}
		m := res.Marginals.Points[i-1]
		ew.printf("%s | %s | %s | %s\n",
			p.Sprintf("%d", point.Level),
			format.Currency(point.Value),
			format.Currency(m.Value),
			p.Sprintf("%.4f", m.PerUnit),
		)
	}
	for _, warning := range res.Diagnostics.Warnings {
		ew.printf("warning: %s\n", warning)
	}
}

func prettyAllocation(ew *errWriter, p *message.Printer, table allocation.Table) {
	ew.printf("--- Prepo allocation by marginal savings ---\n")
	ew.printf("Threshold | Total prepo")
	for _, name := range table.Records {
		ew.printf(" | %s", name)
	}
	ew.printf("\n")
	for _, row := range table.Rows {
		ew.printf("%s | %s", p.Sprintf("%.4f", row.Threshold), format.Currency(row.Total))
		for _, spend := range row.Spend {
			ew.printf(" | %s", format.Currency(spend))
		}
		ew.printf("\n")
	}
}

func prettyOptima(ew *errWriter, p *message.Printer, optima []optimization.Summary) {
	ew.printf("--- Optimal prepo levels ---\n")
	ew.printf("Record | Level | Savings | Notes\n")
	for _, o := range optima {
		ew.printf("%s | %s | %s | %s\n", o.Record, p.Sprintf("%.0f", o.Level), format.Currency(o.Savings), strings.Join(o.Notes, "; "))
	}
}

// errWriter remembers the first write error so formatting code can stay
// linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
