package scheduler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/config"
	"reg-mail-forwarder-go/internal/model"
)

// runScheduled is the cron job: forward today's messages using the configured defaults
func (s *Scheduler) runScheduled() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping scheduled run")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.run(ctx); err != nil {
		if errors.Is(err, model.ErrRunInProgress) {
			logrus.Warn("Skipping scheduled run, another run is in progress")
			return
		}
		logrus.Errorf("Scheduled run failed: %v", err)
	}
}

func (s *Scheduler) run(ctx context.Context) (*model.RunSummary, error) {
	req := config.RunRequest{MailDate: s.now().Format("2006-01-02")}

	summary, err := s.runner.Trigger(ctx, req)
	if err != nil {
		return summary, err
	}

	logrus.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"mail_date": summary.MailDate,
		"forwarded": summary.Forwarded,
		"failed":    summary.Failed,
	}).Infof("Scheduled run completed in %v", summary.Duration)
	return summary, nil
}
