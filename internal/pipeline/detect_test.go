package pipeline

import (
	"math"
	"testing"

	"salesmigrate/internal"
)

func TestDetectSalesReport(t *testing.T) {
	res := DetectSalesReport(sampleGrid(), testProfile())
	if !res.IsSalesReport || res.Reason != "rules_positive" || res.Score != 1 {
		t.Fatalf("res=%+v", res)
	}
	if res.Headers != 2 || res.ItemTables != 2 || res.Items != 3 || res.Totals != 1 {
		t.Fatalf("counts=%+v", res)
	}
}

func TestDetectRejectsOtherSheets(t *testing.T) {
	grid := internal.Grid{
		mkRow("Name", "Price"),
		mkRow(1, "shirt", nil, nil, nil, 2),
	}
	res := DetectSalesReport(grid, testProfile())
	if res.IsSalesReport || res.Reason != "rules_negative" {
		t.Fatalf("res=%+v", res)
	}

	headersOnly := internal.Grid{invoiceRow("1 / 02-04-2025")}
	if res := DetectSalesReport(headersOnly, testProfile()); res.IsSalesReport {
		t.Fatalf("headers alone must not qualify: %+v", res)
	}
}

func TestDetectScoreWeights(t *testing.T) {
	cases := []struct {
		name string
		grid internal.Grid
		want float64
	}{
		{"header and table", internal.Grid{invoiceRow("1 / 02-04-2025"), itemHeaderRow()}, 0.75},
		{"plus totals", internal.Grid{invoiceRow("1 / 02-04-2025"), itemHeaderRow(), totalsRow("Grand Total", 10)}, 0.9},
		{"plus items", internal.Grid{invoiceRow("1 / 02-04-2025"), itemHeaderRow(), itemRow(1, "C1", "shirt", 1, 10, 10, 0, 10)}, 0.85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := DetectSalesReport(tc.grid, testProfile())
			if math.Abs(res.Score-tc.want) > 1e-9 || !res.IsSalesReport {
				t.Fatalf("res=%+v want score %.2f", res, tc.want)
			}
		})
	}
}
