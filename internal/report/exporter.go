// Package report renders invoice lists into spreadsheets for the
// accounting handoff.
package report

import (
	"fmt"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var headers = []string{"Invoice ID", "Vendor", "Description", "Amount", "Status", "Rejection Reason", "Owner", "Created"}

// Exporter writes invoice reports as .xlsx files
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates an exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export writes one sheet with a row per invoice and a totals row
func (e *Exporter) Export(invoices []entity.Invoice, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	var total float64
	for i, inv := range invoices {
		row := i + 2
		values := []any{
			inv.ID,
			inv.VendorName,
			inv.Description,
			inv.Amount,
			string(inv.Status),
			inv.RejectionReason,
			inv.OwnerName,
			inv.CreatedAt.Format("2006-01-02"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
		total += inv.Amount
	}

	totalsRow := len(invoices) + 2
	labelCell, _ := excelize.CoordinatesToCellName(3, totalsRow)
	valueCell, _ := excelize.CoordinatesToCellName(4, totalsRow)
	if err := f.SetCellValue(sheet, labelCell, "Total"); err != nil {
		return fmt.Errorf("failed to write totals label: %w", err)
	}
	if err := f.SetCellValue(sheet, valueCell, total); err != nil {
		return fmt.Errorf("failed to write total: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	e.logger.Info("Invoice report written",
		zap.String("path", outputPath),
		zap.Int("invoices", len(invoices)),
		zap.Float64("total", total))
	return nil
}
