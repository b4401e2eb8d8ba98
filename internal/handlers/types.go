package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"naturelife-cert/internal/models"
)

// DonationRequest is the body for creating or updating a donation
type DonationRequest struct {
	FirstName string          `json:"first_name" binding:"required"`
	LastName  string          `json:"last_name" binding:"required"`
	Country   string          `json:"country" binding:"required"`
	Donation  decimal.Decimal `json:"donation"`
	Currency  string          `json:"currency" binding:"required"`
	Email     string          `json:"email" binding:"required,email"`
}

// DonationListItem is a public listing entry. It never carries the email.
type DonationListItem struct {
	ID        uint            `json:"id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Country   string          `json:"country"`
	Donation  decimal.Decimal `json:"donation"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// DonationResponse is the full donation as returned to its editor
type DonationResponse struct {
	DonationListItem
	Email  string `json:"email"`
	Source string `json:"source"`
}

// CreateDonationResult tells the client where to go after a create
type CreateDonationResult struct {
	Donation       DonationResponse `json:"donation"`
	RedirectTo     string           `json:"redirect_to"`
	CertificateURL string           `json:"certificate_url"`
}

// DispatchResponse represents a dispatch log entry
type DispatchResponse struct {
	ID        uint      `json:"id"`
	MessageID string    `json:"message_id"`
	UID       uint32    `json:"uid"`
	Recipient string    `json:"recipient"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	ErrorMsg  string    `json:"error_msg"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Scheduler string            `json:"scheduler"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func toListItem(d *models.Donation) DonationListItem {
	return DonationListItem{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Country:   d.Country,
		Donation:  d.Amount,
		Currency:  d.Currency,
		CreatedAt: d.CreatedAt,
	}
}

func toResponse(d *models.Donation) DonationResponse {
	return DonationResponse{
		DonationListItem: toListItem(d),
		Email:            d.Email,
		Source:           d.Source,
	}
}

func toDispatchResponse(l *models.DispatchLog) DispatchResponse {
	return DispatchResponse{
		ID:        l.ID,
		MessageID: l.MessageID,
		UID:       l.UID,
		Recipient: l.Recipient,
		Status:    l.Status,
		Stage:     l.Stage,
		ErrorMsg:  l.ErrorMsg,
		CreatedAt: l.CreatedAt,
	}
}
