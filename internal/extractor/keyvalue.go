package extractor

import (
	"strings"
	"unicode"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/currency"

	"naturelife-cert/internal/models"
)

// Options configure the key/value extractor
type Options struct {
	DefaultCountry   string
	DefaultCurrency  string
	FallbackToSender bool
}

// KeyValueExtractor reads one "Key: value" field per line:
//
//	Name: <first> <last...>          (or First Name: / Last Name:)
//	Amount: <number>[ <ISO code>]    (or Donation: / Donation amount:)
//	Email: <address>                 (or E-mail:)
//	Country: <text>                  (optional)
//	Currency: <ISO 4217 code>        (optional)
//
// Keys are case-insensitive and the first occurrence of a key wins.
type KeyValueExtractor struct {
	opts Options
}

func NewKeyValueExtractor(opts Options) *KeyValueExtractor {
	return &KeyValueExtractor{opts: opts}
}

var keyAliases = map[string]string{
	"name":            "name",
	"full name":       "name",
	"first name":      "first",
	"firstname":       "first",
	"last name":       "last",
	"lastname":        "last",
	"surname":         "last",
	"amount":          "amount",
	"donation":        "amount",
	"donation amount": "amount",
	"email":           "email",
	"e-mail":          "email",
	"email address":   "email",
	"e-mail address":  "email",
	"country":         "country",
	"currency":        "currency",
}

func (x *KeyValueExtractor) Extract(msg *models.DecodedMessage) (*models.DonorRecord, error) {
	fields := parseFields(msg.Body)

	first, last := fields["first"], fields["last"]
	if name := fields["name"]; name != "" && first == "" && last == "" {
		parts := strings.Fields(name)
		first = parts[0]
		last = strings.Join(parts[1:], " ")
	}
	if first == "" {
		return nil, missing("name")
	}

	rawAmount, ok := fields["amount"]
	if !ok || rawAmount == "" {
		return nil, missing("amount")
	}
	amount, amountCurrency, err := parseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	email, err := x.email(fields["email"], msg.Sender)
	if err != nil {
		return nil, err
	}

	cur := fields["currency"]
	if cur == "" {
		cur = amountCurrency
	}
	if cur == "" {
		cur = x.opts.DefaultCurrency
	}
	if cur != "" {
		unit, err := currency.ParseISO(strings.ToUpper(cur))
		if err != nil {
			return nil, invalid("currency", "%q is not an ISO 4217 code", cur)
		}
		cur = unit.String()
	}

	country := fields["country"]
	if country == "" {
		country = x.opts.DefaultCountry
	}

	return &models.DonorRecord{
		First:    first,
		Last:     last,
		Amount:   amount,
		Email:    email,
		Country:  country,
		Currency: cur,
	}, nil
}

func (x *KeyValueExtractor) email(value, sender string) (string, error) {
	if value != "" {
		addr, err := mail.ParseAddress(value)
		if err != nil {
			return "", invalid("email", "%q", value)
		}
		return addr.Address, nil
	}

	if !x.opts.FallbackToSender || sender == "" {
		return "", missing("email")
	}
	addr, err := mail.ParseAddress(sender)
	if err != nil {
		return "", invalid("email", "sender %q", sender)
	}
	logrus.WithField("sender", addr.Address).Debug("Using sender address as donor email")
	return addr.Address, nil
}

// parseFields collects the first value seen for each known key
func parseFields(body string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		for _, segment := range splitKeys(line) {
			i := strings.IndexByte(segment, ':')
			if i <= 0 {
				continue
			}
			canonical, ok := keyAliases[normalizeKey(segment[:i])]
			if !ok {
				continue
			}
			if _, seen := fields[canonical]; seen {
				continue
			}
			value := strings.TrimSpace(segment[i+1:])
			fields[canonical] = strings.ReplaceAll(value, "&lt;", "<")
		}
	}
	return fields
}

// splitKeys cuts line before every known "Key:" that does not start it.
// Bodies of multipart/alternative mail are joined without a separator, so
// the last value of one part runs into the first key of the next
// ("jane@example.orgName: Jane Doe").
func splitKeys(line string) []string {
	var segments []string
	start, skipTo := 0, 0
	for i := 0; i < len(line); i++ {
		if i < skipTo {
			continue
		}
		n := keyAt(line, i)
		if n == 0 {
			continue
		}
		skipTo = i + n
		if i > 0 && keyBoundary(line, i) {
			segments = append(segments, line[start:i])
			start = i
		}
	}
	return append(segments, line[start:])
}

// keyAt returns the length of the longest known key plus its colon at
// offset i, or 0
func keyAt(line string, i int) int {
	longest := 0
	for alias := range keyAliases {
		end := i + len(alias)
		if end > len(line) || !strings.EqualFold(line[i:end], alias) {
			continue
		}
		for end < len(line) && line[end] == ' ' {
			end++
		}
		if end < len(line) && line[end] == ':' && end+1-i > longest {
			longest = end + 1 - i
		}
	}
	return longest
}

// keyBoundary reports whether a key at offset i starts a new word. Inside a
// word only a capital following a lower case letter or digit counts, so
// "Username:" stays whole while "example.orgName:" is split.
func keyBoundary(line string, i int) bool {
	prev, cur := rune(line[i-1]), rune(line[i])
	if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsUpper(cur) && !unicode.IsUpper(prev)
}

func normalizeKey(k string) string {
	k = strings.TrimLeft(strings.TrimSpace(k), "-*• ")
	k = strings.ReplaceAll(k, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(k), " "))
}
