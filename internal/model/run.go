package model

import (
	"fmt"
	"time"
)

// MailDateLayouts are the accepted input layouts for a run's mail date.
var MailDateLayouts = []string{"02/01/2006", "2006-01-02"}

// RunConfig is the immutable configuration of a single forwarding run.
type RunConfig struct {
	IMAPServer         string
	SMTPServer         string
	SMTPPort           int
	MailDate           time.Time
	StaffCredential    string
	SenderEmail        string
	Password           string
	RecipientTablePath string
	SenderFilter       string

	// Optional enrichment; empty means not configured.
	CCEmail        string
	AttachmentPath string
	Boilerplate    string

	// LedgerScope names the ledger partition ("2024-09-26" or "global").
	LedgerScope    string
	LedgerPath     string
	FailureLogPath string
}

// ParseMailDate parses an operator supplied mail date.
func ParseMailDate(s string) (time.Time, error) {
	for _, layout := range MailDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid mail date %q, expected dd/mm/yyyy", ErrConfig, s)
}

// Validate checks the required fields of the run configuration
func (c *RunConfig) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"imap_server", c.IMAPServer},
		{"smtp_server", c.SMTPServer},
		{"staff_number", c.StaffCredential},
		{"sender_email", c.SenderEmail},
		{"password", c.Password},
		{"recipient_table_path", c.RecipientTablePath},
		{"sender_filter", c.SenderFilter},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is required", ErrConfig, r.name)
		}
	}

	if c.MailDate.IsZero() {
		return fmt.Errorf("%w: mail_date is required", ErrConfig)
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("%w: invalid smtp port %d", ErrConfig, c.SMTPPort)
	}
	if c.LedgerScope == "" {
		return fmt.Errorf("%w: ledger scope is required", ErrConfig)
	}
	return nil
}

// RunSummary is the aggregate outcome of one run.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	MailDate         string        `json:"mail_date"`
	Candidates       int           `json:"candidates"`
	Forwarded        int           `json:"forwarded"`
	AlreadyForwarded int           `json:"already_forwarded"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Duration         time.Duration `json:"duration"`
}
