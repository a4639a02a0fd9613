package pipeline

import (
	"salesmigrate/internal"
	"salesmigrate/internal/config"
)

type DetectResult struct {
	IsSalesReport bool
	Score         float64
	Reason        string
	Headers       int
	ItemTables    int
	Items         int
	Totals        int
}

// DetectSalesReport scores a grid by how many legacy invoice markers it
// carries. Used to sort mail attachments and to inspect unknown files.
func DetectSalesReport(grid internal.Grid, profile config.Profile) DetectResult {
	classifier := NewClassifier(profile)
	res := DetectResult{}
	for i, row := range grid {
		switch classifier.Classify(i, row).Kind {
		case internal.RowInvoiceHeader:
			res.Headers++
		case internal.RowItemTableHeader:
			res.ItemTables++
		case internal.RowItem:
			res.Items++
		case internal.RowTotalsMarker:
			res.Totals++
		}
	}

	if res.Headers > 0 {
		res.Score += 0.5
	}
	if res.ItemTables > 0 {
		res.Score += 0.25
	}
	if res.Totals > 0 {
		res.Score += 0.15
	}
	if res.Items > 0 {
		res.Score += 0.1
	}
	if res.Score > 1 {
		res.Score = 1
	}

	res.IsSalesReport = res.Headers > 0 && res.Score >= 0.75
	res.Reason = "rules_negative"
	if res.IsSalesReport {
		res.Reason = "rules_positive"
	}
	return res
}
