package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyPattern      = regexp.MustCompile(`(?i)^(rs\.?|inr|₹|\$|€)\s*|\s*(rs\.?|inr|₹|\$|€)$`)
	thousandCommaPattern = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	plainNumberPattern   = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
)

// ParseNumber reads a loosely formatted numeric token ("1,050.00", "Rs. 500",
// "2,5", "(120)"). The second return is false when the token is not a number.
func ParseNumber(input string) (float64, bool) {
	token := normalizeNumericToken(input)
	if token == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseAmount is the lenient money reader: anything unparsable is zero.
func ParseAmount(input string) decimal.Decimal {
	token := normalizeNumericToken(input)
	if token == "" {
		return decimal.Zero
	}
	parsed, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero
	}
	return parsed
}

func normalizeNumericToken(token string) string {
	compact := strings.TrimSpace(strings.ReplaceAll(token, "\u00a0", " "))
	compact = currencyPattern.ReplaceAllString(compact, "")
	compact = strings.ReplaceAll(compact, " ", "")
	if compact == "" {
		return ""
	}
	negative := false
	if strings.HasPrefix(compact, "(") && strings.HasSuffix(compact, ")") {
		negative = true
		compact = strings.TrimSuffix(strings.TrimPrefix(compact, "("), ")")
	}
	switch {
	case thousandCommaPattern.MatchString(compact):
		compact = strings.ReplaceAll(compact, ",", "")
	case strings.Count(compact, ",") == 1 && !strings.Contains(compact, "."):
		compact = strings.ReplaceAll(compact, ",", ".")
	}
	if !plainNumberPattern.MatchString(compact) {
		return ""
	}
	if negative && !strings.HasPrefix(compact, "-") {
		compact = "-" + compact
	}
	return compact
}

func Int64Ptr(v int64) *int64 { return &v }

func StringPtr(v string) *string { return &v }
