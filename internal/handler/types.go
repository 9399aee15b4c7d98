package handler

import (
	"time"

	"reg-mail-forwarder-go/internal/model"
)

// RunResponse is the aggregate outcome of a triggered run
type RunResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Summary *model.RunSummary `json:"summary,omitempty"`
}

// DefaultsResponse pre-fills the trigger form. The password is never returned.
type DefaultsResponse struct {
	IMAPServer   string `json:"imap_server"`
	SMTPServer   string `json:"smtp_server"`
	SMTPPort     int    `json:"smtp_port"`
	MailDate     string `json:"mail_date"`
	StaffNumber  string `json:"staff_number"`
	SenderEmail  string `json:"sender_email"`
	SenderFilter string `json:"sender_filter"`
	CCEmail      string `json:"cc_email"`
}

// FailureResponse represents one failure log entry
type FailureResponse struct {
	ID                 uint      `json:"id"`
	Scope              string    `json:"scope"`
	MessageUID         uint32    `json:"message_uid"`
	RegistrationNumber string    `json:"registration_number"`
	Reason             string    `json:"reason"`
	CreatedAt          time.Time `json:"created_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Ledger    string    `json:"ledger"`
	Scheduler string    `json:"scheduler"`
	NextRun   string    `json:"next_run,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Summary *model.RunSummary `json:"summary,omitempty"`
}
