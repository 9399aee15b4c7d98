package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/composer"
	"reg-mail-forwarder-go/internal/extractor"
	"reg-mail-forwarder-go/internal/ledger"
	"reg-mail-forwarder-go/internal/mailbox"
	metricsPkg "reg-mail-forwarder-go/internal/metrics"
	"reg-mail-forwarder-go/internal/model"
	"reg-mail-forwarder-go/internal/rawmsg"
)

// ReasonNotFound is the failure log reason for a registration missing from the recipient table.
const ReasonNotFound = "not found in table"

// Mailbox is an open mailbox session
type Mailbox interface {
	Search(since time.Time, from string) ([]uint32, error)
	Fetch(uid uint32) ([]byte, error)
	Close() error
}

// Connector opens mailbox sessions
type Connector interface {
	Connect(ctx context.Context, server, username, password string) (Mailbox, error)
}

// Resolver maps registration numbers to recipient addresses
type Resolver interface {
	Check(tablePath string) error
	Resolve(tablePath, reg string) (string, bool, error)
}

// Sender delivers composed messages
type Sender interface {
	Send(ctx context.Context, cfg *model.RunConfig, msg *model.OutboundMessage) error
}

// IMAPConnector adapts a mailbox.Dialer to Connector
type IMAPConnector struct {
	Dialer *mailbox.Dialer
}

// Connect opens an IMAP session
func (c IMAPConnector) Connect(ctx context.Context, server, username, password string) (Mailbox, error) {
	session, err := c.Dialer.Connect(ctx, server, username, password)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Pacing is the pause taken after each delivery attempt
type Pacing struct {
	AfterSuccess time.Duration
	AfterFailure time.Duration
}

// wait blocks for d or until ctx is done
func (p Pacing) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Forwarder runs the search, extract, resolve and forward pipeline
type Forwarder struct {
	mailbox  Connector
	resolver Resolver
	sender   Sender
	ledgers  ledger.Opener
	pacing   Pacing
	metrics  *metricsPkg.Metrics
}

// NewForwarder creates a new forwarder
func NewForwarder(mailbox Connector, resolver Resolver, sender Sender, ledgers ledger.Opener, pacing Pacing, metrics *metricsPkg.Metrics) *Forwarder {
	return &Forwarder{
		mailbox:  mailbox,
		resolver: resolver,
		sender:   sender,
		ledgers:  ledgers,
		pacing:   pacing,
		metrics:  metrics,
	}
}

// run is the state of one forwarding run
type run struct {
	cfg     *model.RunConfig
	store   ledger.Store
	mailbox Mailbox
	summary *model.RunSummary
	log     *logrus.Entry
}

// Run forwards every matching message of cfg.MailDate once per registration
// number. Per message problems are written to the failure log and the run
// continues; configuration, authentication, fetch and ledger errors end it.
// The summary is returned even when the run fails.
func (f *Forwarder) Run(ctx context.Context, cfg *model.RunConfig) (summary *model.RunSummary, err error) {
	start := time.Now()
	summary = &model.RunSummary{
		RunID:    uuid.NewString(),
		MailDate: cfg.MailDate.Format("2006-01-02"),
	}
	log := logrus.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"mail_date": summary.MailDate,
	})

	f.metrics.RunInProgress.Set(1)
	defer func() {
		summary.Duration = time.Since(start)
		f.metrics.RunInProgress.Set(0)
		f.metrics.RunDuration.Observe(summary.Duration.Seconds())
		switch {
		case err == nil:
			f.metrics.Runs.WithLabelValues(metricsPkg.RunSucceeded).Inc()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			f.metrics.Runs.WithLabelValues(metricsPkg.RunCancelled).Inc()
		default:
			f.metrics.Runs.WithLabelValues(metricsPkg.RunFailed).Inc()
		}
	}()

	if err := cfg.Validate(); err != nil {
		return summary, err
	}
	if err := f.resolver.Check(cfg.RecipientTablePath); err != nil {
		return summary, err
	}

	store, err := f.ledgers.Open(cfg)
	if err != nil {
		return summary, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	log.Infof("Connecting to %s as %s", cfg.IMAPServer, cfg.StaffCredential)
	mb, err := f.mailbox.Connect(ctx, cfg.IMAPServer, cfg.StaffCredential, cfg.Password)
	if err != nil {
		return summary, err
	}
	defer func() {
		if cerr := mb.Close(); cerr != nil {
			log.Warnf("Failed to close mailbox session: %v", cerr)
		}
	}()

	uids, err := mb.Search(cfg.MailDate, cfg.SenderFilter)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(uids)
	f.metrics.Candidates.Add(float64(len(uids)))
	log.Infof("Found %d messages from %s since %s", len(uids), cfg.SenderFilter, summary.MailDate)

	r := &run{cfg: cfg, store: store, mailbox: mb, summary: summary, log: log}
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			log.Warn("Run cancelled")
			return summary, err
		}
		if err := f.processMessage(ctx, r, uid); err != nil {
			log.WithError(err).WithField("uid", uid).Error("Run aborted")
			return summary, err
		}
	}

	log.WithFields(logrus.Fields{
		"candidates":        summary.Candidates,
		"forwarded":         summary.Forwarded,
		"already_forwarded": summary.AlreadyForwarded,
		"skipped":           summary.Skipped,
		"failed":            summary.Failed,
	}).Info("Run completed")
	return summary, nil
}

// processMessage handles one candidate. A non-nil error ends the run.
func (f *Forwarder) processMessage(ctx context.Context, r *run, uid uint32) error {
	log := r.log.WithField("uid", uid)

	raw, err := r.mailbox.Fetch(uid)
	if err != nil {
		return err
	}

	msg, err := rawmsg.Parse(raw)
	if err != nil {
		return f.recordFailure(r, uid, "", err.Error())
	}

	body, ok := msg.Body()
	if !ok {
		log.Debug("No text body, skipping")
		r.summary.Skipped++
		f.metrics.ExtractionMisses.Inc()
		return nil
	}
	text, err := body.Text()
	if err != nil {
		return f.recordFailure(r, uid, "", err.Error())
	}

	fields := extractor.Extract(text, body.MediaType == "text/html")
	if fields.RegistrationNumber == nil {
		log.Debug("No registration number, skipping")
		r.summary.Skipped++
		f.metrics.ExtractionMisses.Inc()
		return nil
	}
	reg := *fields.RegistrationNumber
	log = log.WithField("registration_number", reg)

	done, err := r.store.AlreadyForwarded(reg)
	if err != nil {
		return err
	}
	if done {
		log.Info("Already forwarded, skipping")
		r.summary.AlreadyForwarded++
		f.metrics.AlreadyForwarded.Inc()
		return nil
	}

	to, found, err := f.resolver.Resolve(r.cfg.RecipientTablePath, reg)
	if err != nil {
		return err
	}
	if !found {
		log.Warn("Registration not found in recipient table")
		f.metrics.ResolutionMisses.Inc()
		return f.recordFailure(r, uid, reg, ReasonNotFound)
	}

	out, err := composer.Compose(msg, composer.Options{
		From:           r.cfg.SenderEmail,
		To:             to,
		Cc:             r.cfg.CCEmail,
		Boilerplate:    r.cfg.Boilerplate,
		AttachmentPath: r.cfg.AttachmentPath,
	})
	if err != nil {
		return f.recordFailure(r, uid, reg, err.Error())
	}

	if err := f.sender.Send(ctx, r.cfg, out); err != nil {
		if errors.Is(err, model.ErrAuth) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithError(err).Error("Failed to forward message")
		if err := f.recordFailure(r, uid, reg, err.Error()); err != nil {
			return err
		}
		return f.pacing.wait(ctx, f.pacing.AfterFailure)
	}

	if err := r.store.MarkForwarded(reg); err != nil {
		return fmt.Errorf("forwarded %s but failed to record it: %w", reg, err)
	}
	r.summary.Forwarded++
	f.metrics.ForwardSuccesses.Inc()

	log.WithFields(logrus.Fields{
		"to":                 to,
		"certificate_number": deref(fields.CertificateNumber),
		"policy_number":      deref(fields.PolicyNumber),
		"chassis_number":     deref(fields.ChassisNumber),
	}).Info("Message forwarded")

	return f.pacing.wait(ctx, f.pacing.AfterSuccess)
}

func (f *Forwarder) recordFailure(r *run, uid uint32, reg, reason string) error {
	r.summary.Failed++
	f.metrics.ForwardFailures.Inc()

	entry := model.FailureEntry{
		MessageUID:         uid,
		RegistrationNumber: reg,
		Reason:             reason,
		At:                 time.Now(),
	}
	if err := r.store.Record(entry); err != nil {
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
