package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("REPORT_MAX_ERRORS", "7")
	t.Setenv("IMAP_MARK_SEEN", "true")
	t.Setenv("MAIL_WATCH_INTERVAL_SEC", "not-a-number")
	t.Setenv("LAYOUT_PROFILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBDriver != "sqlite" || cfg.ReportMaxErrors != 7 || !cfg.IMAPMarkSeen {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.MailWatchIntervalSec != 300 || cfg.MailWatchLabel != "INBOX" || cfg.MailWatchAutoImport {
		t.Fatalf("mail watch defaults: %+v", cfg)
	}
	if cfg.Profile.MinPartialLength != DefaultProfile().MinPartialLength {
		t.Fatalf("profile=%+v", cfg.Profile)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestLoadReadsLayoutProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("min_partial_length: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LAYOUT_PROFILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Profile.MinPartialLength != 5 {
		t.Fatalf("min partial=%d", cfg.Profile.MinPartialLength)
	}
}

func TestRequire(t *testing.T) {
	if err := (Config{}).Require("IMAP_HOST", " "); err == nil {
		t.Fatal("expected missing value error")
	}
	if err := (Config{}).Require("IMAP_HOST", "mail.example.com"); err != nil {
		t.Fatal(err)
	}
}

func TestUseProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("min_partial_length: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Config{Profile: DefaultProfile()}
	if err := cfg.UseProfile(path); err != nil {
		t.Fatal(err)
	}
	if cfg.LayoutProfilePath != path || cfg.Profile.MinPartialLength != 4 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if err := cfg.UseProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
	if cfg.Profile.MinPartialLength != 4 {
		t.Fatal("failed load replaced the profile")
	}
}
