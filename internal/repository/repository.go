package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"naturelife-cert/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateDonation(d *models.Donation) error {
	if d.Source == "" {
		d.Source = models.SourceWeb
	}
	if err := r.db.Create(d).Error; err != nil {
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

func (r *Repository) GetDonation(id uint) (*models.Donation, error) {
	var d models.Donation
	result := r.db.First(&d, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get donation: %w", result.Error)
	}
	return &d, nil
}

// ListDonations returns donations, newest first
func (r *Repository) ListDonations() ([]models.Donation, error) {
	var donations []models.Donation
	if err := r.db.Order("created_at DESC, id DESC").Find(&donations).Error; err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

func (r *Repository) UpdateDonation(d *models.Donation) error {
	result := r.db.Model(&models.Donation{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
		"first_name": d.FirstName,
		"last_name":  d.LastName,
		"country":    d.Country,
		"donation":   d.Amount,
		"currency":   d.Currency,
		"email":      d.Email,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update donation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteDonation(id uint) error {
	result := r.db.Delete(&models.Donation{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete donation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDonation stores a donation recovered from an inbox message
func (r *Repository) RecordDonation(messageID string, rec *models.DonorRecord) error {
	d := models.Donation{
		FirstName: rec.First,
		LastName:  rec.Last,
		Country:   rec.Country,
		Amount:    rec.Amount,
		Currency:  rec.Currency,
		Email:     rec.Email,
		Source:    models.SourceEmail,
		MessageID: messageID,
	}
	return r.CreateDonation(&d)
}

func (r *Repository) IsMessageProcessed(messageID string) (bool, error) {
	var processed models.ProcessedMessage
	result := r.db.Where("message_id = ?", messageID).First(&processed)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed message: %w", result.Error)
}

func (r *Repository) MarkMessageProcessed(messageID string) error {
	processed := models.ProcessedMessage{
		MessageID:   messageID,
		ProcessedAt: time.Now(),
	}
	if err := r.db.Create(&processed).Error; err != nil {
		return fmt.Errorf("failed to mark message as processed: %w", err)
	}
	return nil
}

func (r *Repository) LogDispatch(entry *models.DispatchLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log dispatch: %w", err)
	}
	return nil
}

// ListDispatchLogs returns one page of dispatch logs, newest first, together
// with the total row count.
func (r *Repository) ListDispatchLogs(page, limit int) ([]models.DispatchLog, int64, error) {
	var total int64
	if err := r.db.Model(&models.DispatchLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count dispatch logs: %w", err)
	}

	var logs []models.DispatchLog
	offset := (page - 1) * limit
	if err := r.db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch dispatch logs: %w", err)
	}
	return logs, total, nil
}

func (r *Repository) GetDispatchLog(id uint) (*models.DispatchLog, error) {
	var entry models.DispatchLog
	result := r.db.First(&entry, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get dispatch log: %w", result.Error)
	}
	return &entry, nil
}
