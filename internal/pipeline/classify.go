package pipeline

import (
	"strings"

	"github.com/shopspring/decimal"

	"salesmigrate/internal"
	"salesmigrate/internal/config"
	"salesmigrate/internal/util"
)

// Classifier labels report rows by the fixed markers of a layout profile.
// It keeps no state between rows.
type Classifier struct {
	profile config.Profile

	invoiceMarker  string
	itemSerial     string
	itemName       string
	grandTotal     string
	discount       string
	customerMarker string
}

func NewClassifier(profile config.Profile) *Classifier {
	return &Classifier{
		profile:        profile,
		invoiceMarker:  labelKey(profile.InvoiceMarker),
		itemSerial:     labelKey(profile.ItemHeaderSerial),
		itemName:       labelKey(profile.ItemHeaderName),
		grandTotal:     labelKey(profile.GrandTotalLabel),
		discount:       labelKey(profile.DiscountLabel),
		customerMarker: labelKey(profile.CustomerMarker),
	}
}

func (c *Classifier) Classify(index int, row internal.Row) internal.ClassifiedRow {
	out := internal.ClassifiedRow{Index: index, Kind: internal.RowOther, Row: row}

	if no, date, ok := c.invoiceHeader(row); ok {
		out.Kind = internal.RowInvoiceHeader
		out.InvoiceNo = no
		out.InvoiceDate = date
		return out
	}

	if c.itemTableHeader(row) {
		out.Kind = internal.RowItemTableHeader
		return out
	}

	if label, value, ok := c.totals(row); ok {
		out.Kind = internal.RowTotalsMarker
		out.Label = label
		out.Value = value
		return out
	}

	if c.customerMarker != "" && strings.HasPrefix(labelKey(row.At(c.profile.Columns.Serial).String()), c.customerMarker) {
		out.Kind = internal.RowCustomerMarker
		return out
	}

	if c.itemRow(row) {
		out.Kind = internal.RowItem
	}
	return out
}

func (c *Classifier) invoiceHeader(row internal.Row) (string, string, bool) {
	marker := labelKey(row.At(c.profile.InvoiceMarkerCol).String())
	if c.invoiceMarker == "" || !strings.HasPrefix(marker, c.invoiceMarker) {
		return "", "", false
	}

	value := row.At(c.profile.InvoiceValueCol).String()
	if value == "" && marker != c.invoiceMarker {
		// "Invoice No/Date : 12 / 01-04-2025" written into a single cell.
		raw := util.CollapseSpaces(row.At(c.profile.InvoiceMarkerCol).String())
		if idx := strings.Index(raw, ":"); idx >= 0 {
			value = strings.TrimSpace(raw[idx+1:])
		}
	}
	if value == "" {
		return "", "", false
	}

	parts := strings.SplitN(value, "/", 2)
	no := strings.TrimSpace(parts[0])
	date := ""
	if len(parts) == 2 {
		date = strings.TrimSpace(parts[1])
	}
	return no, date, true
}

func (c *Classifier) itemTableHeader(row internal.Row) bool {
	if labelKey(row.At(c.profile.Columns.Serial).String()) != c.itemSerial {
		return false
	}
	col := c.profile.ItemHeaderNameCol
	for _, idx := range []int{col, col - 1, col + 1} {
		if labelKey(row.At(idx).String()) == c.itemName {
			return true
		}
	}
	return false
}

func (c *Classifier) totals(row internal.Row) (string, decimal.Decimal, bool) {
	label := labelKey(row.At(c.profile.TotalsLabelCol).String())
	if label == "" {
		return "", decimal.Zero, false
	}

	var canonical string
	switch label {
	case c.grandTotal:
		canonical = c.profile.GrandTotalLabel
	case c.discount:
		canonical = c.profile.DiscountLabel
	default:
		return "", decimal.Zero, false
	}

	value, ok := cellAmount(row.At(c.profile.TotalsValueCol))
	if !ok {
		return "", decimal.Zero, false
	}
	return canonical, value, true
}

func (c *Classifier) itemRow(row internal.Row) bool {
	cols := c.profile.Columns
	if _, ok := cellNumber(row.At(cols.Serial)); !ok {
		return false
	}
	if row.At(cols.Name).String() == "" {
		return false
	}
	if _, ok := cellNumber(row.At(cols.Quantity)); ok {
		return true
	}
	_, ok := cellNumber(row.At(cols.UnitPrice))
	return ok
}

// labelKey makes marker comparison insensitive to case, repeated spaces and
// the space some exports put before a colon.
func labelKey(s string) string {
	s = strings.ToLower(util.CollapseSpaces(s))
	return strings.ReplaceAll(s, " :", ":")
}

func cellNumber(c internal.Cell) (float64, bool) {
	switch c.Kind {
	case internal.CellNumber:
		return c.Number, true
	case internal.CellText:
		return util.ParseNumber(strings.TrimSuffix(c.String(), "."))
	default:
		return 0, false
	}
}

func cellAmount(c internal.Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case internal.CellNumber:
		return decimal.NewFromFloat(c.Number), true
	case internal.CellText:
		if _, ok := util.ParseNumber(c.Text); !ok {
			return decimal.Zero, false
		}
		return util.ParseAmount(c.Text), true
	default:
		return decimal.Zero, false
	}
}
