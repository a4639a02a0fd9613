package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"salesmigrate/internal"
)

// ExportUnmatchedToXLSX writes one row per sale line that found no catalog
// product, so the catalog or the name-fix table can be corrected before the
// next run.
func ExportUnmatchedToXLSX(lines []internal.UnmatchedLine, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"invoice_no", "row", "code", "raw_name", "normalized_name", "quantity", "line_total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, line := range lines {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, line.InvoiceNo)
		set(2, line.RowNumber)
		set(3, line.Code)
		set(4, line.RawName)
		set(5, line.NormalizedName)
		set(6, line.Quantity)
		set(7, line.LineTotal.InexactFloat64())
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
