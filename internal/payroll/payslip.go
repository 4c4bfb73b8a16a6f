package payroll

import (
	"bytes"
	"context"
	"fmt"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/core/common/validation"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// RenderPayslip renders an A4 payslip of an entry with its adjustments.
func (r *ReportAssembler) RenderPayslip(ctx context.Context, actor *internal.User, entryID int64) ([]byte, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	entry, err := r.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != actor.ID && !r.canViewReports(actor) {
		return nil, ErrForbidden
	}
	period, err := r.repo.GetPeriod(ctx, entry.PeriodID)
	if err != nil {
		return nil, err
	}
	adjustments, err := r.repo.ListAdjustments(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	employee := fmt.Sprintf("User #%d", entry.UserID)
	if name := r.displayNames(ctx, []*Entry{entry})[entry.UserID]; name != "" {
		employee = name
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	line := func(text string) {
		pdf.Cell(0, 7, text)
		pdf.Ln(7)
	}
	line(fmt.Sprintf("Employee: %s", employee))
	line(fmt.Sprintf("Period: %s (%s to %s)", period.Name,
		period.StartDate.Format(validation.DateLayout), period.EndDate.Format(validation.DateLayout)))
	if period.Status == StatusVoid {
		line("Status: VOID")
	} else {
		line(fmt.Sprintf("Status: %s", period.Status))
	}
	pdf.Ln(4)

	money := func(v decimal.Decimal) string {
		return fmt.Sprintf("%s %s", v.StringFixed(MoneyPlaces), entry.Currency)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(70, 7, "Earnings", "B", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Hours", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Rate", "B", 0, "R", false, 0, "")
	pdf.CellFormat(45, 7, "Amount", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(70, 7, "Regular", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, entry.RegularHours.StringFixed(2), "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, entry.RegularRate.StringFixed(4), "", 0, "R", false, 0, "")
	pdf.CellFormat(45, 7, entry.RegularHours.Mul(entry.RegularRate).StringFixed(MoneyPlaces), "", 1, "R", false, 0, "")
	pdf.CellFormat(70, 7, "Overtime", "", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, entry.OvertimeHours.StringFixed(2), "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, entry.OvertimeRate.StringFixed(4), "", 0, "R", false, 0, "")
	pdf.CellFormat(45, 7, entry.OvertimeHours.Mul(entry.OvertimeRate).StringFixed(MoneyPlaces), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	if len(adjustments) > 0 {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(140, 7, "Adjustments", "B", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, "Amount", "B", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, a := range adjustments {
			label := string(a.Type)
			if a.Description != "" {
				label = fmt.Sprintf("%s: %s", a.Type, a.Description)
			}
			pdf.CellFormat(140, 7, label, "", 0, "L", false, 0, "")
			pdf.CellFormat(45, 7, a.Amount.StringFixed(MoneyPlaces), "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 11)
	line(fmt.Sprintf("Gross: %s", money(entry.GrossAmount)))
	line(fmt.Sprintf("Adjustments: %s", money(entry.AdjustmentsAmount)))
	line(fmt.Sprintf("Net: %s", money(entry.NetAmount)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip for entry %d: %w", entryID, err)
	}
	return buf.Bytes(), nil
}
