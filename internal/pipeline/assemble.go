package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
)

type assemblerState int

const (
	stateSeeking assemblerState = iota
	stateInHeader
	stateInItems
	stateInTotals
)

func (s assemblerState) String() string {
	switch s {
	case stateInHeader:
		return "InHeader"
	case stateInItems:
		return "InItems"
	case stateInTotals:
		return "InTotals"
	default:
		return "Seeking"
	}
}

type AssemblyStats struct {
	Rows         int
	Invoices     int
	Dropped      int
	SkippedLines int
	Forced       int
}

// Assembler walks classified rows in document order and groups them into
// invoices. Rows that do not fit the current state are skipped.
type Assembler struct {
	classifier *Classifier
	profile    config.Profile
	log        logrus.FieldLogger
}

func NewAssembler(profile config.Profile, log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assembler{classifier: NewClassifier(profile), profile: profile, log: log}
}

func (a *Assembler) Assemble(grid internal.Grid) ([]internal.RawInvoice, AssemblyStats) {
	stats := AssemblyStats{Rows: len(grid)}
	out := []internal.RawInvoice{}

	state := stateSeeking
	var current *internal.RawInvoice

	closeCurrent := func(reason string) {
		if current == nil {
			return
		}
		if len(current.Items) == 0 {
			stats.Dropped++
			a.log.WithFields(logrus.Fields{
				"invoice": current.Number,
				"row":     current.StartRow + 1,
				"state":   state.String(),
				"reason":  reason,
			}).Warn("dropping invoice without items")
		} else {
			out = append(out, *current)
		}
		current = nil
		state = stateInTotals
	}

	open := func(row internal.ClassifiedRow) {
		inv := internal.RawInvoice{
			Number:   row.InvoiceNo,
			DateRaw:  row.InvoiceDate,
			StartRow: row.Index,
		}
		inv.Date, _ = parseInvoiceDate(row.InvoiceDate, a.profile.DateLayouts)
		current = &inv
		state = stateInHeader
	}

	for i, r := range grid {
		row := a.classifier.Classify(i, r)

		switch state {
		case stateSeeking, stateInTotals:
			// Trailing totals of a closed invoice land here and are ignored.
			if row.Kind == internal.RowInvoiceHeader {
				open(row)
			}

		case stateInHeader:
			switch row.Kind {
			case internal.RowItemTableHeader:
				state = stateInItems
			case internal.RowInvoiceHeader:
				stats.Forced++
				closeCurrent("header without item table")
				open(row)
			}

		case stateInItems:
			switch row.Kind {
			case internal.RowItem:
				item := a.parseItem(row)
				if item.Quantity <= 0 {
					stats.SkippedLines++
					a.log.WithFields(logrus.Fields{"invoice": current.Number, "row": i + 1}).
						Debug("skipping item line without quantity")
					continue
				}
				current.Items = append(current.Items, item)
			case internal.RowTotalsMarker:
				value := row.Value
				if strings.EqualFold(row.Label, a.profile.GrandTotalLabel) {
					current.GrandTotal = &value
					closeCurrent("grand total")
				} else {
					current.Discount = &value
				}
			case internal.RowCustomerMarker:
				closeCurrent("customer marker")
			case internal.RowInvoiceHeader:
				stats.Forced++
				closeCurrent("next invoice header")
				open(row)
			}
		}
	}
	closeCurrent("end of grid")

	stats.Invoices = len(out)
	return out, stats
}

func (a *Assembler) parseItem(row internal.ClassifiedRow) internal.RawInvoiceItem {
	cols := a.profile.Columns
	r := row.Row
	qty, _ := cellNumber(r.At(cols.Quantity))
	return internal.RawInvoiceItem{
		RowNumber:  row.Index + 1,
		Code:       r.At(cols.Code).String(),
		Name:       r.At(cols.Name).String(),
		HSN:        r.At(cols.HSN).String(),
		TaxPercent: amountOrZero(r.At(cols.TaxPercent)),
		Quantity:   qty,
		UnitPrice:  amountOrZero(r.At(cols.UnitPrice)),
		NetAmount:  amountOrZero(r.At(cols.NetAmount)),
		TaxAmount:  amountOrZero(r.At(cols.TaxAmount)),
		LineTotal:  amountOrZero(r.At(cols.LineTotal)),
	}
}

func amountOrZero(c internal.Cell) decimal.Decimal {
	v, _ := cellAmount(c)
	return v
}

func parseInvoiceDate(raw string, layouts []string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty invoice date")
	}
	// Some exports append the time of day after the date.
	if fields := strings.Fields(raw); len(fields) > 1 {
		raw = fields[0]
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised invoice date %q", raw)
}
