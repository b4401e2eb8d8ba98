package models

import (
	"time"

	"gorm.io/gorm"
)

// ProcessedMessage marks an inbox message as handled so it is never
// certified twice, even when mark-seen is disabled.
type ProcessedMessage struct {
	ID          uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string         `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ProcessedAt time.Time      `json:"processed_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for ProcessedMessage
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
