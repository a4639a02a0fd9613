package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes one export configuration of the legacy sales report:
// where the markers sit, which column holds which item field, and the
// name fixes applied by the normalizer. Different exports of the same
// legacy product disagree on offsets, so every offset lives here.
type Profile struct {
	InvoiceMarker     string `yaml:"invoice_marker"`
	InvoiceMarkerCol  int    `yaml:"invoice_marker_col"`
	InvoiceValueCol   int    `yaml:"invoice_value_col"`
	ItemHeaderSerial  string `yaml:"item_header_serial"`
	ItemHeaderName    string `yaml:"item_header_name"`
	ItemHeaderNameCol int    `yaml:"item_header_name_col"`
	TotalsLabelCol    int    `yaml:"totals_label_col"`
	TotalsValueCol    int    `yaml:"totals_value_col"`
	GrandTotalLabel   string `yaml:"grand_total_label"`
	DiscountLabel     string `yaml:"discount_label"`
	CustomerMarker    string `yaml:"customer_marker"`

	Columns ItemColumns `yaml:"columns"`

	DateLayouts      []string          `yaml:"date_layouts"`
	MinPartialLength int               `yaml:"min_partial_length"`
	NameFixes        map[string]string `yaml:"name_fixes"`
}

type ItemColumns struct {
	Serial     int `yaml:"serial"`
	Code       int `yaml:"code"`
	Name       int `yaml:"name"`
	HSN        int `yaml:"hsn"`
	TaxPercent int `yaml:"tax_percent"`
	Quantity   int `yaml:"quantity"`
	UnitPrice  int `yaml:"unit_price"`
	NetAmount  int `yaml:"net_amount"`
	TaxAmount  int `yaml:"tax_amount"`
	LineTotal  int `yaml:"line_total"`
}

var defaultNameFixes = map[string]string{
	"doubil":   "Double",
	"dubble":   "Double",
	"niker":    "Knicker",
	"nicker":   "Knicker",
	"tshirt":   "T-Shirt",
	"shrt":     "Shirt",
	"sirt":     "Shirt",
	"jens":     "Jeans",
	"jeens":    "Jeans",
	"frok":     "Frock",
	"leging":   "Legging",
	"banian":   "Baniyan",
	"bedshit":  "Bedsheet",
	"bedsheat": "Bedsheet",
}

func DefaultProfile() Profile {
	fixes := make(map[string]string, len(defaultNameFixes))
	for k, v := range defaultNameFixes {
		fixes[k] = v
	}
	return Profile{
		InvoiceMarker:     "Invoice No/Date :",
		InvoiceMarkerCol:  7,
		InvoiceValueCol:   9,
		ItemHeaderSerial:  "Sl. No",
		ItemHeaderName:    "Item name",
		ItemHeaderNameCol: 2,
		TotalsLabelCol:    3,
		TotalsValueCol:    9,
		GrandTotalLabel:   "Grand Total",
		DiscountLabel:     "Discount Amount",
		CustomerMarker:    "Customer :",
		Columns: ItemColumns{
			Serial:     0,
			Code:       1,
			Name:       2,
			HSN:        3,
			TaxPercent: 4,
			Quantity:   5,
			UnitPrice:  6,
			NetAmount:  7,
			TaxAmount:  8,
			LineTotal:  9,
		},
		DateLayouts:      []string{"02-01-2006", "2-1-2006", "02.01.2006", "02/01/2006", "2006-01-02", "02-01-06"},
		MinPartialLength: 3,
		NameFixes:        fixes,
	}
}

// LoadProfile reads a YAML profile over the defaults: keys left out keep
// their default value and a name_fixes block is merged into the built-in
// table rather than replacing it.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read layout profile: %w", err)
	}
	return ParseProfile(data)
}

func ParseProfile(data []byte) (Profile, error) {
	profile := DefaultProfile()
	builtin := profile.NameFixes
	profile.NameFixes = nil

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse layout profile: %w", err)
	}

	for k, v := range profile.NameFixes {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		builtin[key] = strings.TrimSpace(v)
	}
	profile.NameFixes = builtin

	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid layout profile: %w", err)
	}
	return profile, nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.InvoiceMarker) == "" {
		return fmt.Errorf("invoice_marker is empty")
	}
	cols := []struct {
		name  string
		value int
	}{
		{"invoice_marker_col", p.InvoiceMarkerCol},
		{"invoice_value_col", p.InvoiceValueCol},
		{"item_header_name_col", p.ItemHeaderNameCol},
		{"totals_label_col", p.TotalsLabelCol},
		{"totals_value_col", p.TotalsValueCol},
		{"columns.name", p.Columns.Name},
		{"columns.quantity", p.Columns.Quantity},
	}
	for _, col := range cols {
		if col.value < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", col.name, col.value)
		}
	}
	if len(p.DateLayouts) == 0 {
		return fmt.Errorf("date_layouts is empty")
	}
	return validateNameFixes(p.NameFixes)
}

// validateNameFixes rejects corrections that a second normalization would
// change again: digit-only tokens are trimmed as sizes, and a token that is
// itself corrected to something else chains.
func validateNameFixes(fixes map[string]string) error {
	keys := make(map[string]string, len(fixes))
	for k, v := range fixes {
		keys[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	for k, v := range fixes {
		for _, tok := range strings.Fields(v) {
			if isDigitToken(tok) {
				return fmt.Errorf("name_fixes.%s: %q has a number-only word", k, v)
			}
			if next := keys[strings.ToLower(tok)]; next != "" && next != tok {
				return fmt.Errorf("name_fixes.%s: %q is corrected again to %q", k, tok, next)
			}
		}
	}
	return nil
}

func isDigitToken(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
