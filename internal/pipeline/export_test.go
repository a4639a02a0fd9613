package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"salesmigrate/internal"
)

func TestExportUnmatchedToXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "unmatched.xlsx")
	lines := []internal.UnmatchedLine{
		{InvoiceNo: "2", RowNumber: 9, RawName: "kids frok 32", NormalizedName: "Kids Frock", Quantity: 1, LineTotal: decimal.NewFromInt(630)},
	}
	if err := ExportUnmatchedToXLSX(lines, out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "invoice_no" || rows[1][4] != "Kids Frock" || rows[1][6] != "630" {
		t.Fatalf("rows=%v", rows)
	}
}
