package model

import (
	"time"
)

// ForwardedRegistration records a registration number that has been forwarded successfully
type ForwardedRegistration struct {
	ID                 uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Scope              string    `json:"scope" gorm:"type:varchar(64);not null;index:idx_scope_reg"`
	RegistrationNumber string    `json:"registration_number" gorm:"type:varchar(64);not null;index:idx_scope_reg"`
	ForwardedAt        time.Time `json:"forwarded_at"`
}

// TableName specifies the table name for ForwardedRegistration
func (ForwardedRegistration) TableName() string {
	return "forwarded_registrations"
}
