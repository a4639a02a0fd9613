package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesmigrate/internal"
)

func TestAssembleInvoiceBoundaries(t *testing.T) {
	invoices, stats := NewAssembler(testProfile(), nil).Assemble(sampleGrid())

	if len(invoices) != 2 || stats.Invoices != 2 || stats.Dropped != 0 {
		t.Fatalf("invoices=%d stats=%+v", len(invoices), stats)
	}
	first, second := invoices[0], invoices[1]
	if first.Number != "1" || len(first.Items) != 2 || first.StartRow != 1 {
		t.Fatalf("first=%+v", first)
	}
	if !first.Date.Equal(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date=%s", first.Date)
	}
	if first.GrandTotal == nil || !first.GrandTotal.Equal(decimal.NewFromInt(1890)) {
		t.Fatalf("grand=%v", first.GrandTotal)
	}
	item := first.Items[0]
	if item.RowNumber != 4 || item.Code != "C1" || item.Name != "formal shrt 999" || item.Quantity != 2 {
		t.Fatalf("item=%+v", item)
	}
	if !item.UnitPrice.Equal(decimal.NewFromInt(500)) || !item.LineTotal.Equal(decimal.NewFromInt(1050)) || !item.TaxPercent.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("item amounts=%+v", item)
	}
	if second.Number != "2" || len(second.Items) != 1 || second.GrandTotal != nil {
		t.Fatalf("second=%+v", second)
	}
}

func TestAssembleDropsInvoiceWithoutItems(t *testing.T) {
	grid := internal.Grid{
		invoiceRow("1 / 02-04-2025"),
		itemHeaderRow(),
		totalsRow("Grand Total", 0),
		invoiceRow("2 / 02-04-2025"),
		invoiceRow("3 / 02-04-2025"),
		itemHeaderRow(),
		itemRow(1, "", "shirt", 1, 10, 10, 0, 10),
	}
	invoices, stats := NewAssembler(testProfile(), nil).Assemble(grid)
	if len(invoices) != 1 || invoices[0].Number != "3" {
		t.Fatalf("invoices=%+v", invoices)
	}
	if stats.Dropped != 2 || stats.Forced != 1 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestAssembleDiscountAndTrailingTotals(t *testing.T) {
	grid := internal.Grid{
		invoiceRow("5 / 02-04-2025"),
		itemHeaderRow(),
		itemRow(1, "", "shirt", 2, 100, 200, 10, 210),
		totalsRow("Discount Amount", 20),
		customerRow(),
		totalsRow("Grand Total", 190),
	}
	invoices, _ := NewAssembler(testProfile(), nil).Assemble(grid)
	if len(invoices) != 1 {
		t.Fatalf("invoices=%d", len(invoices))
	}
	inv := invoices[0]
	if inv.Discount == nil || !inv.Discount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("discount=%v", inv.Discount)
	}
	if inv.GrandTotal != nil {
		t.Fatalf("totals after the customer block must be ignored, got %v", inv.GrandTotal)
	}
}

func TestAssembleSkipsZeroQuantityAndStrayRows(t *testing.T) {
	grid := internal.Grid{
		itemRow(1, "", "before any header", 1, 10, 10, 0, 10),
		invoiceRow("9 / 31-12-2024"),
		itemRow(1, "", "before item table", 1, 10, 10, 0, 10),
		itemHeaderRow(),
		itemRow(1, "", "free gift", 0, 0, 0, 0, 0),
		mkRow("page 2"),
		itemRow(2, "", "shirt", 1, 10, 10, 0, 10),
	}
	invoices, stats := NewAssembler(testProfile(), nil).Assemble(grid)
	if len(invoices) != 1 || len(invoices[0].Items) != 1 || invoices[0].Items[0].Name != "shirt" {
		t.Fatalf("invoices=%+v", invoices)
	}
	if stats.SkippedLines != 1 || stats.Rows != len(grid) {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestAssembleKeepsUnparseableDate(t *testing.T) {
	grid := internal.Grid{
		invoiceRow("4 / someday"),
		itemHeaderRow(),
		itemRow(1, "", "shirt", 1, 10, 10, 0, 10),
	}
	invoices, _ := NewAssembler(testProfile(), nil).Assemble(grid)
	if len(invoices) != 1 || !invoices[0].Date.IsZero() || invoices[0].DateRaw != "someday" {
		t.Fatalf("invoices=%+v", invoices)
	}
}

func TestParseInvoiceDate(t *testing.T) {
	layouts := testProfile().DateLayouts
	cases := map[string]string{
		"02-04-2025":       "2025-04-02",
		"2-4-2025":         "2025-04-02",
		"02/04/2025 10:15": "2025-04-02",
		"2025-04-02":       "2025-04-02",
	}
	for in, want := range cases {
		got, err := parseInvoiceDate(in, layouts)
		if err != nil || got.Format("2006-01-02") != want {
			t.Fatalf("parseInvoiceDate(%q)=%s, %v", in, got, err)
		}
	}
	if _, err := parseInvoiceDate("", layouts); err == nil {
		t.Fatal("expected error for empty date")
	}
	if _, err := parseInvoiceDate("31-02-2025", layouts); err == nil {
		t.Fatal("expected error for impossible date")
	}
}
