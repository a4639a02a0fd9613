package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalizer turns a legacy item description into the canonical display
// name shared by catalog import and sales reconciliation.
type Normalizer struct {
	fixes map[string]string
}

func NewNormalizer(fixes map[string]string) *Normalizer {
	table := make(map[string]string, len(fixes)*2)
	for k, v := range fixes {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || strings.TrimSpace(v) == "" {
			continue
		}
		table[key] = strings.TrimSpace(v)
	}
	// Every token of a correction must map to itself on a second pass, so
	// "t-shirt" resolves back to "T-Shirt" rather than "T-shirt".
	for _, v := range fixes {
		for _, tok := range strings.Fields(v) {
			if _, ok := table[strings.ToLower(tok)]; !ok {
				table[strings.ToLower(tok)] = tok
			}
		}
	}
	return &Normalizer{fixes: table}
}

func (n *Normalizer) Normalize(raw string) string {
	tokens := strings.Fields(raw)
	for len(tokens) > 1 && isDigits(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}

	for i, tok := range tokens {
		tok = strings.ToLower(tok)
		if fixed, ok := n.fixes[tok]; ok {
			tokens[i] = fixed
			continue
		}
		tokens[i] = capitalize(tok)
	}
	return strings.Join(tokens, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
