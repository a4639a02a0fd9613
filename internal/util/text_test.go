package util

import "testing"

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		" c1 ":         "C1",
		"8901234 567":  "8901234567",
		"SKU-01/a":     "SKU-01/A",
		"8901234567.0": "8901234567",
		"":             "",
		"\tab#12 ":     "AB12",
	}
	for input, want := range cases {
		if got := NormalizeCode(input); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCollapseSpaces(t *testing.T) {
	if got := CollapseSpaces("  formal \t  shirt\n"); got != "formal shirt" {
		t.Fatalf("got %q", got)
	}
}
