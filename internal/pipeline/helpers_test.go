package pipeline

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

// mkRow builds a ten-column report row; nil leaves a cell empty.
func mkRow(vals ...any) internal.Row {
	row := make(internal.Row, 10)
	for i, v := range vals {
		switch x := v.(type) {
		case string:
			row[i] = internal.TextCell(x)
		case int:
			row[i] = internal.NumberCell(float64(x))
		case float64:
			row[i] = internal.NumberCell(x)
		}
	}
	return row
}

func invoiceRow(value string) internal.Row {
	return mkRow(nil, nil, nil, nil, nil, nil, nil, "Invoice No/Date :", nil, value)
}

func itemHeaderRow() internal.Row {
	return mkRow("Sl. No", "Code", "Item name", "HSN", "Tax %", "Qty", "Rate", "Net Amount", "Tax Amount", "Total")
}

func itemRow(serial int, code, name string, qty, price, net, tax, total float64) internal.Row {
	return mkRow(serial, code, name, "6205", 5, qty, price, net, tax, total)
}

func totalsRow(label string, value float64) internal.Row {
	return mkRow(nil, nil, nil, label, nil, nil, nil, nil, nil, value)
}

func customerRow() internal.Row {
	return mkRow("Customer : Walk-in")
}

// sampleGrid is two invoices: #1 with two lines closed by its grand total,
// #2 with one line closed by the customer block.
func sampleGrid() internal.Grid {
	return internal.Grid{
		mkRow("ABC Garments"),
		invoiceRow("1 / 02-04-2025"),
		itemHeaderRow(),
		itemRow(1, "C1", "formal shrt 999", 2, 500, 1000, 50, 1050),
		itemRow(2, "", "doubil bedshit", 1, 800, 800, 40, 840),
		totalsRow("Grand Total", 1890),
		invoiceRow("2 / 03-04-2025"),
		itemHeaderRow(),
		itemRow(1, "", "kids frok 32", 1, 600, 600, 30, 630),
		customerRow(),
	}
}

const sampleCSV = "ABC Garments\n" +
	",,,,,,,Invoice No/Date :,,1 / 02-04-2025\n" +
	"Sl. No,Code,Item name,HSN,Tax %,Qty,Rate,Net Amount,Tax Amount,Total\n" +
	"1,C1,formal shrt 999,6205,5,2,500,1000,50,1050\n" +
	",,,Grand Total,,,,,,1050\n"

func testProfile() config.Profile {
	return config.DefaultProfile()
}
