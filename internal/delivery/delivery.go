package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/model"
)

// Client delivers composed messages over SMTP. Each Send opens its own
// session and closes it before returning.
type Client struct {
	// StartTLS upgrades the session before authenticating. Disable only for
	// trusted relays that do not offer STARTTLS.
	StartTLS           bool
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewClient creates a STARTTLS delivery client
func NewClient(timeout time.Duration, insecureSkipVerify bool) *Client {
	return &Client{
		StartTLS:           true,
		InsecureSkipVerify: insecureSkipVerify,
		Timeout:            timeout,
	}
}

// Send transmits msg to all of its recipients using the run's SMTP server
// and credentials.
func (c *Client) Send(ctx context.Context, cfg *model.RunConfig, msg *model.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.SMTPServer, strconv.Itoa(cfg.SMTPPort))
	sc, err := c.dial(addr, cfg.SMTPServer)
	if err != nil {
		return fmt.Errorf("%w: failed to connect to SMTP server %s: %v", model.ErrDelivery, addr, err)
	}
	defer sc.Close()

	if c.Timeout > 0 {
		sc.CommandTimeout = c.Timeout
		sc.SubmissionTimeout = c.Timeout
	}

	if err := sc.Auth(sasl.NewPlainClient("", cfg.StaffCredential, cfg.Password)); err != nil {
		if isAuthRejected(err) {
			return fmt.Errorf("%w: SMTP login rejected for %s: %v", model.ErrAuth, cfg.StaffCredential, err)
		}
		return fmt.Errorf("%w: SMTP authentication failed: %v", model.ErrDelivery, err)
	}

	if err := sc.SendMail(msg.From, msg.Recipients(), bytes.NewReader(msg.Raw)); err != nil {
		return fmt.Errorf("%w: %v", model.ErrDelivery, err)
	}

	if err := sc.Quit(); err != nil {
		// The message was already accepted.
		logrus.Warnf("SMTP QUIT failed after delivery to %s: %v", msg.To, err)
	}
	return nil
}

func (c *Client) dial(addr, host string) (*smtp.Client, error) {
	if !c.StartTLS {
		return smtp.Dial(addr)
	}
	tlsConfig := &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
	return smtp.DialStartTLS(addr, tlsConfig)
}

// isAuthRejected reports a permanent credentials rejection (535).
func isAuthRejected(err error) bool {
	var smtpErr *smtp.SMTPError
	return errors.As(err, &smtpErr) && smtpErr.Code == 535
}
