package extractor

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// parseAmount parses values such as "25", "$1,250.00", "€ 12,50" and
// "40 CHF". It returns the amount and any currency the value names.
func parseAmount(value string) (decimal.Decimal, string, error) {
	s := strings.TrimSpace(value)
	cur := ""

	for sym, code := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			cur = code
			break
		}
		if strings.HasSuffix(s, sym) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sym))
			cur = code
			break
		}
	}

	if parts := strings.Fields(s); len(parts) == 2 && isCode(parts[1]) {
		s, cur = parts[0], strings.ToUpper(parts[1])
	} else if len(parts) == 2 && isCode(parts[0]) {
		s, cur = parts[1], strings.ToUpper(parts[0])
	}

	amount, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return decimal.Zero, "", invalid("amount", "%q is not a number", value)
	}
	if !amount.IsPositive() {
		return decimal.Zero, "", invalid("amount", "%q must be greater than zero", value)
	}
	return amount, cur, nil
}

func isCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// normalizeNumber removes thousands separators. When both ',' and '.'
// appear the later one is the decimal mark; a lone ',' followed by exactly
// two digits is treated as a decimal comma.
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 == 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}
