package service

import (
	"context"
	"sync"
	"time"

	"reg-mail-forwarder-go/internal/config"
	"reg-mail-forwarder-go/internal/model"
)

// Runner builds run configurations and allows one forwarding run at a time
type Runner struct {
	config    *config.Config
	forwarder *Forwarder
	mu        sync.Mutex
}

// NewRunner creates a new runner
func NewRunner(cfg *config.Config, forwarder *Forwarder) *Runner {
	return &Runner{config: cfg, forwarder: forwarder}
}

// Trigger runs the forwarder for req. It returns model.ErrRunInProgress
// without waiting when another run is active.
func (r *Runner) Trigger(ctx context.Context, req config.RunRequest) (*model.RunSummary, error) {
	if !r.mu.TryLock() {
		return nil, model.ErrRunInProgress
	}
	defer r.mu.Unlock()

	cfg, err := r.config.RunConfig(req)
	if err != nil {
		return nil, err
	}
	return r.forwarder.Run(ctx, cfg)
}

// Defaults returns the form defaults for a run on mailDate. The password
// and file paths are not included.
func (r *Runner) Defaults(mailDate time.Time) config.RunRequest {
	d := r.config.Defaults
	return config.RunRequest{
		IMAPServer:   d.IMAPServer,
		SMTPServer:   d.SMTPServer,
		SMTPPort:     r.config.SMTP.Port,
		MailDate:     mailDate.Format(model.MailDateLayouts[0]),
		StaffNumber:  d.StaffNumber,
		SenderEmail:  d.SenderEmail,
		SenderFilter: d.SenderFilter,
		CCEmail:      d.CCEmail,
	}
}
