package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultProfileValid(t *testing.T) {
	p := DefaultProfile()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.InvoiceMarkerCol != 7 || p.InvoiceValueCol != 9 {
		t.Fatalf("marker cols=%d/%d", p.InvoiceMarkerCol, p.InvoiceValueCol)
	}
	if p.NameFixes["doubil"] != "Double" {
		t.Fatalf("missing built-in fix: %v", p.NameFixes)
	}
}

func TestParseProfileOverridesOnlyGivenKeys(t *testing.T) {
	blob := []byte(`
invoice_value_col: 8
columns:
  quantity: 4
  tax_percent: 5
name_fixes:
  Kurtha: Kurta
`)
	p, err := ParseProfile(blob)
	if err != nil {
		t.Fatal(err)
	}
	if p.InvoiceValueCol != 8 {
		t.Fatalf("invoice_value_col=%d", p.InvoiceValueCol)
	}
	if p.InvoiceMarkerCol != 7 {
		t.Fatalf("invoice_marker_col=%d, default lost", p.InvoiceMarkerCol)
	}
	if p.Columns.Quantity != 4 || p.Columns.TaxPercent != 5 || p.Columns.Name != 2 {
		t.Fatalf("columns=%+v", p.Columns)
	}
	if p.NameFixes["kurtha"] != "Kurta" {
		t.Fatalf("custom fix not merged: %v", p.NameFixes)
	}
	if p.NameFixes["niker"] != "Knicker" {
		t.Fatalf("built-in fix dropped: %v", p.NameFixes)
	}
}

func TestParseProfileRejectsNegativeColumn(t *testing.T) {
	if _, err := ParseProfile([]byte("totals_value_col: -1\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaultProfileIsNotShared(t *testing.T) {
	a := DefaultProfile()
	a.NameFixes["doubil"] = "Changed"
	if b := DefaultProfile(); b.NameFixes["doubil"] != "Double" {
		t.Fatal("default name fixes leaked between profiles")
	}
}

func TestLoadProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("customer_marker: \"Party :\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.CustomerMarker != "Party :" {
		t.Fatalf("customer_marker=%q", p.CustomerMarker)
	}
}

func TestParseProfileRejectsUnstableNameFixes(t *testing.T) {
	cases := map[string]string{
		"number word": "name_fixes:\n  pk: \"Pack 2\"\n",
		"chained":     "name_fixes:\n  shrt: Top\n  top: Tee\n",
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(blob)); err == nil {
				t.Fatal("expected name_fixes error")
			}
		})
	}

	p, err := ParseProfile([]byte("name_fixes:\n  tshirt: \"T-Shirt XL\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if p.NameFixes["tshirt"] != "T-Shirt XL" {
		t.Fatalf("fixes=%v", p.NameFixes)
	}
}
