package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	DBPath      string
	DatabaseURL string
	InboxDir    string

	ReportPath          string
	UnmatchedExportPath string
	ReportMaxErrors     int
	LayoutProfilePath   string

	ImportedFrom         string
	DefaultPaymentMethod string

	LogLevel  string
	LogFormat string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailRateLimitRPS int

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailWatchProvider    string
	MailWatchLabel       string
	MailWatchFetchMax    int
	MailWatchIntervalSec int
	MailWatchAutoImport  bool

	// MailWatchReplaceHistory confirms that each auto import replaces every
	// earlier migrated sale.
	MailWatchReplaceHistory bool

	Profile Profile
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:      getEnv("DB_PATH", filepath.Join(cwd, "data", "store.db")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		InboxDir:    getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),

		ReportPath:          getEnv("REPORT_PATH", "migration-report.txt"),
		UnmatchedExportPath: getEnv("UNMATCHED_EXPORT_PATH", ""),
		ReportMaxErrors:     getEnvInt("REPORT_MAX_ERRORS", 50),
		LayoutProfilePath:   getEnv("LAYOUT_PROFILE", ""),

		ImportedFrom:         getEnv("IMPORTED_FROM", "legacy-pos-export"),
		DefaultPaymentMethod: getEnv("DEFAULT_PAYMENT_METHOD", "CASH"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailRateLimitRPS: getEnvInt("GMAIL_RATE_LIMIT_RPS", 5),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailWatchProvider:    strings.ToLower(getEnv("MAIL_WATCH_PROVIDER", "imap")),
		MailWatchLabel:       getEnv("MAIL_WATCH_LABEL", "INBOX"),
		MailWatchFetchMax:    getEnvInt("MAIL_WATCH_FETCH_MAX", 20),
		MailWatchIntervalSec: getEnvInt("MAIL_WATCH_INTERVAL_SEC", 300),
		MailWatchAutoImport:  getEnvBool("MAIL_WATCH_AUTO_IMPORT", false),

		MailWatchReplaceHistory: getEnvBool("MAIL_WATCH_REPLACE_HISTORY", false),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}

	profile := DefaultProfile()
	if strings.TrimSpace(cfg.LayoutProfilePath) != "" {
		profile, err = LoadProfile(cfg.LayoutProfilePath)
		if err != nil {
			return Config{}, err
		}
	}
	cfg.Profile = profile

	return cfg, nil
}

// UseProfile replaces the layout profile with the one at path.
func (c *Config) UseProfile(path string) error {
	profile, err := LoadProfile(path)
	if err != nil {
		return err
	}
	c.LayoutProfilePath = path
	c.Profile = profile
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
