package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesmigrate/internal"
)

const DefaultReportMaxErrors = 50

func RenderReport(stats internal.ImportStats, maxErrors int) string {
	if maxErrors <= 0 {
		maxErrors = DefaultReportMaxErrors
	}

	mode := "live"
	if stats.DryRun {
		mode = "dry run (nothing written)"
	}

	average := decimal.Zero
	if stats.Sales > 0 {
		average = stats.TotalAmount.Div(decimal.NewFromInt(int64(stats.Sales)))
	}

	var b strings.Builder
	b.WriteString("Legacy sales migration report\n")
	b.WriteString("=============================\n")
	fmt.Fprintf(&b, "Run:                 %s\n", stats.RunID)
	fmt.Fprintf(&b, "Source:              %s\n", stats.Source)
	fmt.Fprintf(&b, "Mode:                %s\n", mode)
	fmt.Fprintf(&b, "Started:             %s\n", formatTime(stats.StartedAt))
	fmt.Fprintf(&b, "Finished:            %s\n", formatTime(stats.FinishedAt))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Invoices assembled:  %d\n", stats.Invoices)
	fmt.Fprintf(&b, "Invoices dropped:    %d\n", stats.Dropped)
	fmt.Fprintf(&b, "Sales imported:      %d\n", stats.Sales)
	fmt.Fprintf(&b, "Sale items imported: %d\n", stats.SaleItems)
	fmt.Fprintf(&b, "Unmatched items:     %d\n", stats.Unmatched)
	fmt.Fprintf(&b, "Skipped invoices:    %d\n", stats.Skipped)
	fmt.Fprintf(&b, "Total revenue:       %s\n", stats.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "Average sale:        %s\n", average.StringFixed(2))
	b.WriteString("\n")

	if len(stats.Errors) == 0 {
		b.WriteString("Errors: none\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Errors (%d):\n", len(stats.Errors))
	shown := stats.Errors
	if len(shown) > maxErrors {
		shown = shown[:maxErrors]
	}
	for i, msg := range shown {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, msg)
	}
	if rest := len(stats.Errors) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", rest)
	}
	return b.String()
}

// WriteReport overwrites path with the rendered report.
func WriteReport(path string, stats internal.ImportStats, maxErrors int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(RenderReport(stats, maxErrors)), 0o644)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
