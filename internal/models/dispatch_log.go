package models

import (
	"time"

	"gorm.io/gorm"
)

// Dispatch statuses
const (
	DispatchSuccess = "success"
	DispatchSkipped = "skipped"
	DispatchFailure = "failure"
)

// DispatchLog records the outcome of one message run through the pipeline
type DispatchLog struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID string         `json:"message_id" gorm:"type:varchar(255);not null;index"`
	UID       uint32         `json:"uid"`
	Recipient string         `json:"recipient" gorm:"type:varchar(255)"`
	Status    string         `json:"status" gorm:"type:varchar(50);not null"`
	Stage     string         `json:"stage" gorm:"type:varchar(50)"`
	ErrorMsg  string         `json:"error_msg" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for DispatchLog
func (DispatchLog) TableName() string {
	return "dispatch_logs"
}
