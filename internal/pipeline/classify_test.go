package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"

	"salesmigrate/internal"
)

func TestClassifyKinds(t *testing.T) {
	c := NewClassifier(testProfile())

	cases := []struct {
		name string
		row  internal.Row
		want internal.RowKind
	}{
		{"invoice header", invoiceRow("1 / 02-04-2025"), internal.RowInvoiceHeader},
		{"item table header", itemHeaderRow(), internal.RowItemTableHeader},
		{"item header name shifted right", mkRow("SL. NO", "Code", nil, "Item  Name"), internal.RowItemTableHeader},
		{"item row", itemRow(1, "C1", "shirt", 1, 10, 10, 0, 10), internal.RowItem},
		{"item row with dotted text serial", mkRow("3.", "", "shirt", nil, nil, "2"), internal.RowItem},
		{"item row without code", itemRow(2, "", "shirt", 1, 10, 10, 0, 10), internal.RowItem},
		{"serial without quantity or price", mkRow(1, "C1", "shirt"), internal.RowOther},
		{"serial without name", mkRow(1, "C1", nil, nil, nil, 2, 10), internal.RowOther},
		{"grand total", totalsRow("Grand Total", 1050), internal.RowTotalsMarker},
		{"discount", totalsRow("discount amount", 50), internal.RowTotalsMarker},
		{"other totals label", totalsRow("Net Total", 1000), internal.RowOther},
		{"customer marker", customerRow(), internal.RowCustomerMarker},
		{"title", mkRow("ABC Garments"), internal.RowOther},
		{"empty", mkRow(), internal.RowOther},
		{"short row", internal.Row{internal.TextCell("x")}, internal.RowOther},
		{"nil row", nil, internal.RowOther},
	}
	for i, tc := range cases {
		got := c.Classify(i, tc.row)
		if got.Kind != tc.want {
			t.Fatalf("%s: kind=%s want %s", tc.name, got.Kind, tc.want)
		}
		if got.Index != i {
			t.Fatalf("%s: index=%d", tc.name, got.Index)
		}
	}
}

func TestClassifyInvoiceHeaderValues(t *testing.T) {
	c := NewClassifier(testProfile())

	got := c.Classify(0, invoiceRow("INV-12 / 02-04-2025 10:15"))
	if got.InvoiceNo != "INV-12" || got.InvoiceDate != "02-04-2025 10:15" {
		t.Fatalf("got no=%q date=%q", got.InvoiceNo, got.InvoiceDate)
	}

	inline := mkRow(nil, nil, nil, nil, nil, nil, nil, "Invoice No/Date : 7 / 01-04-2025")
	got = c.Classify(0, inline)
	if got.Kind != internal.RowInvoiceHeader || got.InvoiceNo != "7" || got.InvoiceDate != "01-04-2025" {
		t.Fatalf("inline header: %+v", got)
	}

	noValue := mkRow(nil, nil, nil, nil, nil, nil, nil, "Invoice No/Date :")
	if c.Classify(0, noValue).Kind == internal.RowInvoiceHeader {
		t.Fatal("header without a value must not open an invoice")
	}
}

func TestClassifyTotalsValue(t *testing.T) {
	c := NewClassifier(testProfile())

	got := c.Classify(0, totalsRow("GRAND  TOTAL", 1050.5))
	if got.Label != "Grand Total" || !got.Value.Equal(decimal.RequireFromString("1050.5")) {
		t.Fatalf("got label=%q value=%s", got.Label, got.Value)
	}

	text := mkRow(nil, nil, nil, "Grand Total", nil, nil, nil, nil, nil, "1,050.00")
	got = c.Classify(0, text)
	if got.Kind != internal.RowTotalsMarker || !got.Value.Equal(decimal.NewFromInt(1050)) {
		t.Fatalf("text total: %+v", got)
	}

	missing := mkRow(nil, nil, nil, "Grand Total", nil, nil, nil, nil, nil, "n/a")
	if c.Classify(0, missing).Kind == internal.RowTotalsMarker {
		t.Fatal("totals without a number must not classify")
	}
}
