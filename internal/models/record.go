package models

import (
	"github.com/shopspring/decimal"
)

// DonorRecord is the structured data recovered from a donation request
type DonorRecord struct {
	First    string
	Last     string
	Amount   decimal.Decimal
	Email    string
	Country  string
	Currency string
}

// FullName joins first and last name
func (r *DonorRecord) FullName() string {
	switch {
	case r.First == "":
		return r.Last
	case r.Last == "":
		return r.First
	}
	return r.First + " " + r.Last
}

// DecodedMessage is a fetched inbox message reduced to its sender, subject,
// and plain body text.
type DecodedMessage struct {
	UID       uint32
	MessageID string
	Sender    string
	Subject   string
	Body      string
}
