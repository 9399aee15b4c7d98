package model

import (
	"time"
)

// ForwardFailure is a failure log row kept for the operator
type ForwardFailure struct {
	ID                 uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Scope              string    `json:"scope" gorm:"type:varchar(64);not null;index"`
	MessageUID         uint32    `json:"message_uid"`
	RegistrationNumber string    `json:"registration_number" gorm:"type:varchar(64);index"`
	Reason             string    `json:"reason" gorm:"type:text;not null"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName specifies the table name for ForwardFailure
func (ForwardFailure) TableName() string {
	return "forward_failures"
}

// FailureEntry is a single failure log record.
type FailureEntry struct {
	MessageUID         uint32
	RegistrationNumber string
	Reason             string
	At                 time.Time
}
