package pipeline

import "testing"

func TestNormalize(t *testing.T) {
	n := NewNormalizer(testProfile().NameFixes)

	cases := map[string]string{
		"formal shrt 999":       "Formal Shirt",
		"DOUBIL   bedshit":      "Double Bedsheet",
		"tshirt kids 12 34":     "T-Shirt Kids",
		"t-shirt":               "T-Shirt",
		"jeens":                 "Jeans",
		"kids NIKER 2pc":        "Kids Knicker 2pc",
		"123":                   "123",
		"saree 5":               "Saree",
		"  ":                    "",
		"cotton frok":           "Cotton Frock",
		"éclair top":            "Éclair Top",
		"Leging 40 Black 1 2 3": "Legging 40 Black",
	}
	for in, want := range cases {
		if got := n.Normalize(in); got != want {
			t.Fatalf("Normalize(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(testProfile().NameFixes)
	inputs := []string{
		"formal shrt 999", "tshirt", "T-SHIRT 2", "banian 10 20", "bedsheat double", "a 1", "x",
		"kids frok 4 5", "Knicker", "  mixed   CASE item ",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		if twice := n.Normalize(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizerIgnoresBlankFixes(t *testing.T) {
	n := NewNormalizer(map[string]string{"": "X", "foo": " ", "Bar": "Baz"})
	if got := n.Normalize("foo bar"); got != "Foo Baz" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeMultiWordFixIsStable(t *testing.T) {
	fixes := testProfile().NameFixes
	fixes["tshirt"] = "T-Shirt XL"
	fixes["bedsheat"] = "Bed Sheet"
	n := NewNormalizer(fixes)

	for in, want := range map[string]string{
		"tshirt 4":        "T-Shirt XL",
		"cotton bedsheat": "Cotton Bed Sheet",
	} {
		once := n.Normalize(in)
		if once != want {
			t.Fatalf("Normalize(%q)=%q want %q", in, once, want)
		}
		if twice := n.Normalize(once); twice != once {
			t.Fatalf("second pass changed %q to %q", once, twice)
		}
	}
}
