package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProfileFlagLeavesEnvironmentAlone(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LAYOUT_PROFILE", "")

	profile := filepath.Join(tmp, "layout.yaml")
	if err := os.WriteFile(profile, []byte("min_partial_length: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(tmp, "sales.csv")
	csv := ",,,,,,,Invoice No/Date :,,1 / 02-04-2025\n" +
		"Sl. No,Code,Item name,HSN,Tax %,Qty,Rate,Net Amount,Tax Amount,Total\n" +
		"1,C1,formal shrt 999,6205,5,2,500,1000,50,1050\n"
	if err := os.WriteFile(input, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	a := &app{}
	root := newRootCommand(a)
	root.SetArgs([]string{"--profile", profile, "--log-level", "error", "report:inspect", "--input", input})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if a.cfg.Profile.MinPartialLength != 6 || a.cfg.LayoutProfilePath != profile {
		t.Fatalf("profile not applied: %+v", a.cfg.Profile)
	}
	if got := os.Getenv("LAYOUT_PROFILE"); got != "" {
		t.Fatalf("LAYOUT_PROFILE=%q", got)
	}
}
