package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"salesmigrate/internal"
)

func TestRenderReportTruncatesErrors(t *testing.T) {
	stats := internal.ImportStats{
		RunID:       "run-1",
		Source:      "sales.xlsx",
		Invoices:    3,
		Sales:       2,
		SaleItems:   5,
		TotalAmount: decimal.RequireFromString("1000.5"),
	}
	for i := 0; i < 7; i++ {
		stats.Errors = append(stats.Errors, fmt.Sprintf("problem %d", i+1))
	}

	out := RenderReport(stats, 5)
	for _, want := range []string{
		"Sales imported:      2",
		"Total revenue:       1000.50",
		"Average sale:        500.25",
		"Errors (7):",
		"  5. problem 5",
		"  ...and 2 more",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "problem 6") {
		t.Fatalf("report not truncated:\n%s", out)
	}
}

func TestRenderReportNoErrors(t *testing.T) {
	out := RenderReport(internal.ImportStats{DryRun: true}, 0)
	if !strings.Contains(out, "Errors: none") || !strings.Contains(out, "dry run") || !strings.Contains(out, "Average sale:        0.00") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}

func TestWriteReportOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "migration-report.txt")
	if err := WriteReport(path, internal.ImportStats{RunID: "first"}, 0); err != nil {
		t.Fatal(err)
	}
	if err := WriteReport(path, internal.ImportStats{RunID: "second"}, 0); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(blob), "first") || !strings.Contains(string(blob), "second") {
		t.Fatalf("report=%s", blob)
	}
}
