package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Donation sources
const (
	SourceWeb   = "web"
	SourceEmail = "email"
)

// Donation is a stored donor record. Records come from the web form or from
// donation request emails.
type Donation struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	FirstName string          `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName  string          `json:"last_name" gorm:"type:varchar(100);not null"`
	Country   string          `json:"country" gorm:"type:varchar(100);not null"`
	Amount    decimal.Decimal `json:"donation" gorm:"column:donation;type:decimal(12,2);not null"`
	Currency  string          `json:"currency" gorm:"type:varchar(3);not null"`
	Email     string          `json:"email,omitempty" gorm:"type:varchar(255);not null"`
	Source    string          `json:"source" gorm:"type:varchar(20);not null;default:web"`
	MessageID string          `json:"message_id,omitempty" gorm:"type:varchar(255);index"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Donation
func (Donation) TableName() string {
	return "donations"
}

// Record returns the donor record rendered onto certificates
func (d *Donation) Record() *DonorRecord {
	return &DonorRecord{
		First:    d.FirstName,
		Last:     d.LastName,
		Amount:   d.Amount,
		Email:    d.Email,
		Country:  d.Country,
		Currency: d.Currency,
	}
}
