package infra

// pdf.go — Close-out report rendering using go-pdf/fpdf.
// Produces a one-page A5 summary of a sealed register session:
//   - Register and session identifiers
//   - Opening float, expected vs recorded balance
//   - Variance with classification
//   - Sales broken down by payment method
//   - Withdrawal total, ticket count, session duration
//
// The output file is saved to storagePath/closeout_{session}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tillpos/internal/dto"

	"github.com/go-pdf/fpdf"
)

// GenerateCloseoutPDF renders the close-out report of one register session.
// storagePath is the directory where the PDF will be written (created if needed).
// Returns the absolute path to the generated file.
func GenerateCloseoutPDF(report *dto.CloseReportResponse, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("closeout_%s.pdf", report.SessionID)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Register Close-Out Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Register "+report.RegisterID, "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, "Session "+report.SessionID, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(3)

	labelW := contentW * 0.55
	valueW := contentW * 0.45

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(labelW, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, value, "", 1, "R", false, 0, "")
	}

	// ── Balances ─────────────────────────────────────────────────────────────
	row("Opening float:", "$"+report.OpeningFloat.StringFixed(2))
	row("Expected balance:", "$"+report.ExpectedBalance.StringFixed(2))
	row("Recorded balance:", "$"+report.RecordedBalance.StringFixed(2))

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelW, 7, "Variance:", "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 7,
		fmt.Sprintf("$%s (%s%%, %s)",
			report.Variance.Amount.StringFixed(2),
			report.Variance.Pct.StringFixed(2),
			report.Variance.Classification),
		"", 1, "R", false, 0, "")
	pdf.Ln(2)

	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(3)

	// ── Sales by payment method ───────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 6, "Sales by payment method", "", 1, "L", false, 0, "")

	methods := make([]string, 0, len(report.SalesByMethod))
	for m := range report.SalesByMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		row("  "+m+":", "$"+report.SalesByMethod[m].StringFixed(2))
	}
	pdf.Ln(2)

	// ── Session summary ──────────────────────────────────────────────────────
	row("Total withdrawals:", "$"+report.TotalWithdrawals.StringFixed(2))
	row("Tickets:", fmt.Sprintf("%d", report.TicketCount))
	row("Session duration:", (time.Duration(report.SessionSeconds) * time.Second).String())
	if report.Notes != nil && *report.Notes != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, "Notes: "+*report.Notes, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
