package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/model"
)

// DefaultPort is the IMAP over TLS port used when the server has none.
const DefaultPort = 993

// Dialer opens authenticated mailbox sessions
type Dialer struct {
	Port               int
	InsecureSkipVerify bool
	Timeout            time.Duration

	// Dial overrides how the connection is established. Defaults to
	// client.DialTLS.
	Dial func(addr string, tlsConfig *tls.Config) (*client.Client, error)
}

// Session is an authenticated IMAP connection with INBOX selected
type Session struct {
	client *client.Client
}

// Connect dials the server, logs in and selects INBOX read-only
func (d *Dialer) Connect(ctx context.Context, server, username, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := hostPort(server, d.port())
	host, _, _ := net.SplitHostPort(addr)
	tlsConfig := &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.InsecureSkipVerify,
	}

	dial := d.Dial
	if dial == nil {
		dial = client.DialTLS
	}

	c, err := dial(addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to IMAP server %s: %v", model.ErrNetwork, addr, err)
	}
	if d.Timeout > 0 {
		c.Timeout = d.Timeout
	}

	if err := c.Login(username, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: failed to login to IMAP server %s: %v", model.ErrAuth, addr, err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: failed to select INBOX: %v", model.ErrNetwork, err)
	}

	logrus.Infof("Connected to IMAP server %s as %s", addr, username)
	return &Session{client: c}, nil
}

func (d *Dialer) port() int {
	if d.Port > 0 {
		return d.Port
	}
	return DefaultPort
}

func hostPort(server string, port int) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), fmt.Sprint(port))
}

// Search returns the UIDs of messages received on or after since whose From
// header contains from. The order is the server's.
func (s *Session) Search(since time.Time, from string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	if from != "" {
		criteria.Header.Add("From", from)
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search messages: %v", model.ErrNetwork, err)
	}
	return uids, nil
}

// Fetch returns the full raw bytes of the message with the given UID without
// marking it seen.
func (s *Session) Fetch(uid uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		if raw != nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			readErr = fmt.Errorf("server returned no body")
			continue
		}
		raw, readErr = io.ReadAll(body)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: uid %d: %v", model.ErrFetch, uid, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: uid %d: %v", model.ErrFetch, uid, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: uid %d no longer exists", model.ErrFetch, uid)
	}
	return raw, nil
}

// Close logs out and releases the connection
func (s *Session) Close() error {
	return s.client.Logout()
}
